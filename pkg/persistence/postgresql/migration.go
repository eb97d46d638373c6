package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Flow versions are immutable once published; each version is a row.
			CREATE TABLE flows (
				id VARCHAR(255) NOT NULL,
				version INTEGER NOT NULL,
				workspace_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published', 'unpublished')),
				entry_node_id VARCHAR(255) NOT NULL,
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (id, version)
			);

			CREATE INDEX idx_flows_workspace_id ON flows(workspace_id);
			CREATE INDEX idx_flows_status ON flows(status);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workspace_id VARCHAR(255) NOT NULL,
				flow_id VARCHAR(255) NOT NULL,
				flow_version INTEGER NOT NULL,
				lead_id VARCHAR(255) NOT NULL,
				conversation_id VARCHAR(255) NOT NULL,
				current_node_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				wait_kind VARCHAR(50) NOT NULL DEFAULT '',
				wait_until TIMESTAMP WITH TIME ZONE,
				snapshot JSONB,
				step_sequence BIGINT NOT NULL DEFAULT 0,
				jump_count INTEGER NOT NULL DEFAULT 0,
				failure_code VARCHAR(100) NOT NULL DEFAULT '',
				failure_message TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_executions_workspace_status ON executions(workspace_id, status);
			CREATE INDEX idx_executions_due ON executions(wait_until)
				WHERE status = 'waiting' AND wait_kind = 'deadline';

			-- At most one active execution per (lead, flow).
			CREATE UNIQUE INDEX idx_executions_active ON executions(lead_id, flow_id)
				WHERE status IN ('running', 'waiting');
		`,
	}
}
