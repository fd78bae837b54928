package mysql

import (
	"context"
	"fmt"
)

// schema holds the DDL for the four collections. Each table stands alone and
// can be truncated without touching the others.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sequences (
		name VARCHAR(64) NOT NULL,
		seq_value BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (name)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		conversation_id BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		message_id BIGINT NOT NULL,
		sender_id BIGINT NOT NULL,
		receiver_id BIGINT NOT NULL,
		content TEXT NOT NULL,
		PRIMARY KEY (conversation_id, created_at, message_id)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_summaries (
		conversation_id BIGINT NOT NULL,
		sender_id BIGINT NOT NULL,
		receiver_id BIGINT NOT NULL,
		last_message TEXT NOT NULL,
		last_ts BIGINT NOT NULL,
		PRIMARY KEY (conversation_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_timeline (
		user_id BIGINT NOT NULL,
		conversation_id BIGINT NOT NULL,
		counterpart_id BIGINT NOT NULL,
		last_ts BIGINT NOT NULL,
		PRIMARY KEY (user_id, conversation_id),
		KEY idx_user_activity (user_id, last_ts)
	)`,
}

// Bootstrap creates the tables if they do not exist.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("mysql: bootstrap schema: %w", err)
		}
	}
	return nil
}
