package postgresql

// migrations returns the schema migrations keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				object_type TEXT NOT NULL,
				status TEXT NOT NULL,
				entry_condition JSONB NOT NULL DEFAULT '{}',
				goal_condition JSONB,
				settings JSONB NOT NULL DEFAULT '{}',
				suppression_segment_ids JSONB NOT NULL DEFAULT '[]',
				enrolled_count BIGINT NOT NULL DEFAULT 0,
				completed_count BIGINT NOT NULL DEFAULT 0,
				goal_reached_count BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_tenant_object
				ON workflows (tenant_id, object_type)
				WHERE deleted_at IS NULL;

			CREATE TABLE IF NOT EXISTS workflow_steps (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows (id),
				step_type TEXT NOT NULL,
				action_type TEXT,
				config JSONB NOT NULL DEFAULT '{}',
				parent_step_id TEXT,
				branch_path TEXT,
				position INTEGER NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_steps_workflow
				ON workflow_steps (workflow_id, position);

			CREATE TABLE IF NOT EXISTS workflow_executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows (id),
				tenant_id TEXT NOT NULL,
				record_id TEXT NOT NULL,
				record_type TEXT NOT NULL,
				status TEXT NOT NULL,
				current_step_id TEXT,
				resume_at TIMESTAMP WITH TIME ZONE,
				pause_reason TEXT,
				completion_reason TEXT,
				error_message TEXT,
				enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow_record
				ON workflow_executions (workflow_id, record_id, record_type);

			CREATE INDEX IF NOT EXISTS idx_executions_resume
				ON workflow_executions (resume_at)
				WHERE status = 'paused';

			CREATE TABLE IF NOT EXISTS workflow_execution_logs (
				id TEXT PRIMARY KEY,
				execution_id TEXT NOT NULL REFERENCES workflow_executions (id),
				step_id TEXT,
				outcome TEXT NOT NULL,
				detail JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_execution_logs_execution
				ON workflow_execution_logs (execution_id, created_at);

			CREATE TABLE IF NOT EXISTS segments (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				segment_type TEXT NOT NULL,
				object_type TEXT NOT NULL,
				filters JSONB
			);

			CREATE TABLE IF NOT EXISTS segment_members (
				segment_id TEXT NOT NULL REFERENCES segments (id),
				record_id TEXT NOT NULL,
				PRIMARY KEY (segment_id, record_id)
			);
		`,
	}
}
