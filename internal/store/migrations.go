package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS departments (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	parent_id  TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_departments_parent ON departments(parent_id);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL CHECK(role IN ('STAFF', 'MANAGER', 'HR_ADMIN')),
	is_hr_admin   INTEGER NOT NULL DEFAULT 0 CHECK(is_hr_admin IN (0, 1)),
	department_id TEXT NOT NULL REFERENCES departments(id),
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_users_department ON users(department_id);

CREATE TABLE IF NOT EXISTS projects (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	department_id TEXT NOT NULL REFERENCES departments(id),
	creator_id    TEXT NOT NULL REFERENCES users(id),
	priority      INTEGER NOT NULL DEFAULT 5 CHECK(priority BETWEEN 1 AND 10),
	status        TEXT NOT NULL DEFAULT 'ACTIVE',
	archived      INTEGER NOT NULL DEFAULT 0 CHECK(archived IN (0, 1)),
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_active_name
	ON projects(lower(name)) WHERE archived = 0;

CREATE TABLE IF NOT EXISTS project_grants (
	project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	department_id TEXT NOT NULL REFERENCES departments(id),
	granted_by    TEXT NOT NULL REFERENCES users(id),
	created_at    DATETIME NOT NULL,
	PRIMARY KEY (project_id, department_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	id                  TEXT PRIMARY KEY,
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	priority            INTEGER NOT NULL CHECK(priority BETWEEN 1 AND 10),
	due_date            DATETIME NOT NULL,
	status              TEXT NOT NULL DEFAULT 'TO_DO',
	owner_id            TEXT NOT NULL REFERENCES users(id),
	department_id       TEXT NOT NULL REFERENCES departments(id),
	project_id          TEXT REFERENCES projects(id),
	parent_task_id      TEXT REFERENCES tasks(id),
	recurrence_days     INTEGER CHECK(recurrence_days IS NULL OR (recurrence_days > 0 AND parent_task_id IS NULL)),
	successor_id        TEXT,
	recurred_from_id    TEXT UNIQUE,
	archived            INTEGER NOT NULL DEFAULT 0 CHECK(archived IN (0, 1)),
	overdue_notified_on TEXT,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL,
	completed_at        DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tasks_department ON tasks(department_id);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS task_assignees (
	task_id     TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL REFERENCES users(id),
	assigned_at DATETIME NOT NULL,
	PRIMARY KEY (task_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_task_assignees_user ON task_assignees(user_id);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	author_id  TEXT NOT NULL REFERENCES users(id),
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	edited_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_comments_task ON comments(task_id);

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	recipient_id TEXT NOT NULL,
	task_id      TEXT,
	type         TEXT NOT NULL,
	title        TEXT NOT NULL,
	message      TEXT NOT NULL,
	read         INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	read_at      DATETIME,
	created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient_read
	ON notifications(recipient_id, read, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS attachments (
	id           TEXT PRIMARY KEY,
	task_id      TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	uploader_id  TEXT NOT NULL REFERENCES users(id),
	file_name    TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size_bytes   INTEGER NOT NULL,
	storage_key  TEXT NOT NULL,
	created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attachments_task ON attachments(task_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
