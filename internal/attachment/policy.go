// Package attachment validates uploaded files and stores them in a BlobStore.
package attachment

import (
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"

	"github.com/nhle/tracker/internal/model"
)

// Policy bounds attachment uploads.
type Policy struct {
	MaxBytes int64
	// Allowed lists accepted media types. Params such as charset are ignored.
	Allowed []string
}

// PolicyFromConfig reads the upload policy from cfg.
func PolicyFromConfig(cfg model.AttachmentConfig) Policy {
	return Policy{MaxBytes: cfg.MaxBytes, Allowed: cfg.AllowedTypes}
}

// Check sniffs data and returns its detected type, or a validation error
// when the payload is empty, too large, or of a type outside the allow-list.
func (p Policy) Check(data []byte) (*mimetype.MIME, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(model.ErrValidation, "attachment is empty")
	}
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return nil, errors.Wrapf(model.ErrValidation, "attachment is %d bytes, limit is %d", len(data), p.MaxBytes)
	}

	mt := mimetype.Detect(data)
	for _, allowed := range p.Allowed {
		if mt.Is(allowed) {
			return mt, nil
		}
	}
	return nil, errors.Wrapf(model.ErrValidation, "attachment type %s is not allowed", mt.String())
}
