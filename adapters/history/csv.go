package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

var csvHeader = []string{"user_id", "role", "content", "timestamp"}

// CSVRepository stores the whole conversation table in one CSV file.
// Files written with only the first three columns are still readable.
type CSVRepository struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

var _ repositories.HistoryRepository = (*CSVRepository)(nil)

// NewCSVRepository creates a repository backed by path
func NewCSVRepository(path string, logger *zap.Logger) *CSVRepository {
	return &CSVRepository{path: path, logger: logger}
}

// Load reads every row. A missing file is an empty history.
func (r *CSVRepository) Load(ctx context.Context) ([]entities.ConversationTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []entities.ConversationTurn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []entities.ConversationTurn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history header: %w", err)
	}
	columns, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var turns []entities.ConversationTurn
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read history line %d: %w", line, err)
		}

		turn, err := parseRecord(record, columns)
		if err != nil {
			return nil, fmt.Errorf("invalid history line %d: %w", line, err)
		}
		turns = append(turns, turn)
	}

	return turns, nil
}

// Save rewrites the file atomically through a temporary file in the same
// directory.
func (r *CSVRepository) Save(ctx context.Context, turns []entities.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(csvHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history header: %w", err)
	}
	for _, t := range turns {
		ts := ""
		if !t.Timestamp.IsZero() {
			ts = t.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		record := []string{strconv.FormatInt(t.UserID, 10), string(t.Role), t.Content, ts}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write history row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close history file: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	r.logger.Debug("History saved", zap.String("path", r.path), zap.Int("turns", len(turns)))
	return nil
}

type columns struct {
	userID, role, content, timestamp int
}

func columnIndex(header []string) (columns, error) {
	c := columns{userID: -1, role: -1, content: -1, timestamp: -1}
	for i, name := range header {
		switch name {
		case "user_id":
			c.userID = i
		case "role":
			c.role = i
		case "content":
			c.content = i
		case "timestamp":
			c.timestamp = i
		}
	}
	if c.userID < 0 || c.role < 0 || c.content < 0 {
		return c, fmt.Errorf("history header must contain user_id, role and content, got %v", header)
	}
	return c, nil
}

func parseRecord(record []string, c columns) (entities.ConversationTurn, error) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return record[i]
	}

	userID, err := strconv.ParseInt(field(c.userID), 10, 64)
	if err != nil {
		return entities.ConversationTurn{}, fmt.Errorf("invalid user_id: %w", err)
	}
	role, err := entities.ParseRole(field(c.role))
	if err != nil {
		return entities.ConversationTurn{}, err
	}

	turn := entities.ConversationTurn{
		UserID:  userID,
		Role:    role,
		Content: field(c.content),
	}
	if ts := field(c.timestamp); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			turn.Timestamp = parsed
		}
	}
	return turn, nil
}
