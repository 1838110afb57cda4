package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/agenthub/types"
)

// executionRecord is the persisted row for one finished execution.
// Tool calls are stored as a JSON blob since they are only ever read
// back whole.
type executionRecord struct {
	ID         string `gorm:"primaryKey;size:64"`
	AgentName  string `gorm:"index;size:128"`
	Input      string
	Output     string
	Success    bool
	Error      string
	Iterations int
	Tokens     int
	ToolCalls  string
	StartedAt  time.Time
	FinishedAt time.Time `gorm:"index"`
}

func (executionRecord) TableName() string { return "executions" }

// Store persists finished executions in a sqlite database.
type Store struct {
	db         *gorm.DB
	maxRecords int
	logger     *zap.Logger
}

// Open opens (or creates) the history database at path and migrates the
// schema. maxRecords caps the retained rows per agent, 0 keeps all.
func Open(path string, maxRecords int, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.AutoMigrate(&executionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	logger.Info("execution history enabled",
		zap.String("path", path),
		zap.Int("max_records", maxRecords),
	)

	return &Store{
		db:         db,
		maxRecords: maxRecords,
		logger:     logger.With(zap.String("component", "history")),
	}, nil
}

// RecordExecution inserts one finished execution and prunes old rows
// for the same agent beyond the configured retention.
func (s *Store) RecordExecution(ctx context.Context, exec *types.Execution) error {
	row, err := toRecord(exec)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	if s.maxRecords > 0 {
		return s.prune(ctx, exec.AgentName)
	}
	return nil
}

// ListExecutions returns the most recent executions, newest first.
// An empty agent name matches all agents.
func (s *Store) ListExecutions(ctx context.Context, agent string, limit int) ([]types.Execution, error) {
	query := s.db.WithContext(ctx).Order("finished_at DESC")
	if agent != "" {
		query = query.Where("agent_name = ?", agent)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []executionRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	executions := make([]types.Execution, 0, len(rows))
	for i := range rows {
		exec, err := fromRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		executions = append(executions, *exec)
	}
	return executions, nil
}

// Ping verifies the underlying database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) prune(ctx context.Context, agent string) error {
	err := s.db.WithContext(ctx).Exec(
		`DELETE FROM executions WHERE agent_name = ? AND id NOT IN (
			SELECT id FROM executions WHERE agent_name = ?
			ORDER BY finished_at DESC LIMIT ?
		)`, agent, agent, s.maxRecords,
	).Error
	if err != nil {
		return fmt.Errorf("failed to prune executions: %w", err)
	}
	return nil
}

func toRecord(exec *types.Execution) (*executionRecord, error) {
	var toolCalls string
	if len(exec.ToolCalls) > 0 {
		data, err := json.Marshal(exec.ToolCalls)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tool calls: %w", err)
		}
		toolCalls = string(data)
	}

	return &executionRecord{
		ID:         exec.ID,
		AgentName:  exec.AgentName,
		Input:      exec.Input,
		Output:     exec.Output,
		Success:    exec.Success,
		Error:      exec.Error,
		Iterations: exec.Iterations,
		Tokens:     exec.Tokens,
		ToolCalls:  toolCalls,
		StartedAt:  exec.StartedAt,
		FinishedAt: exec.FinishedAt,
	}, nil
}

func fromRecord(row *executionRecord) (*types.Execution, error) {
	exec := &types.Execution{
		ID:         row.ID,
		AgentName:  row.AgentName,
		Input:      row.Input,
		Output:     row.Output,
		Success:    row.Success,
		Error:      row.Error,
		Iterations: row.Iterations,
		Tokens:     row.Tokens,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
	}
	if row.ToolCalls != "" {
		if err := json.Unmarshal([]byte(row.ToolCalls), &exec.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to decode tool calls: %w", err)
		}
	}
	return exec, nil
}
