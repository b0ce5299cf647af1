package postgresql

// migrations returns the schema migrations keyed by version. Amounts are
// NUMERIC(78, 0) so a full uint256 fits without truncation.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id BIGINT PRIMARY KEY,
				owner TEXT NOT NULL,
				trigger_type SMALLINT NOT NULL,
				trigger_data BYTEA NOT NULL DEFAULT ''::bytea,
				action_type SMALLINT NOT NULL,
				action_data BYTEA NOT NULL DEFAULT ''::bytea,
				next_run BIGINT NOT NULL DEFAULT 0,
				run_interval BIGINT NOT NULL DEFAULT 0,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				gas_budget NUMERIC(78, 0) NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_owner ON workflows (owner);
			CREATE INDEX IF NOT EXISTS idx_workflows_due ON workflows (active, next_run);

			CREATE TABLE IF NOT EXISTS escrow_balances (
				user_address TEXT PRIMARY KEY,
				amount NUMERIC(78, 0) NOT NULL DEFAULT 0,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS protocol_counters (
				name TEXT PRIMARY KEY,
				value BIGINT NOT NULL DEFAULT 0
			);
		`,
	}
}
