package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS triggers (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				institute_id VARCHAR(255) NOT NULL,
				event_name VARCHAR(255) NOT NULL,
				idempotency JSONB,
				nodes JSONB NOT NULL DEFAULT '[]',
				enabled BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_triggers_event_name
				ON triggers (event_name) WHERE deleted_at IS NULL;
		`,
		2: `
			CREATE TABLE IF NOT EXISTS idempotency_keys (
				trigger_id VARCHAR(255) NOT NULL,
				key VARCHAR(512) NOT NULL,
				reserved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				expires_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (trigger_id, key)
			);
		`,
		3: `
			CREATE TABLE IF NOT EXISTS execution_details (
				id VARCHAR(255) PRIMARY KEY,
				run_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				node_kind VARCHAR(64) NOT NULL,
				status VARCHAR(32) NOT NULL,
				detail JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_execution_details_run_id
				ON execution_details (run_id, created_at);
		`,
	}
}
