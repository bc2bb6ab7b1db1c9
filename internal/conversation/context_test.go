package conversation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/smartspeaker/adapters/history"
	"github.com/satriahrh/smartspeaker/domain"
	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

type memoryRepository struct {
	mu      sync.Mutex
	turns   []entities.ConversationTurn
	loadErr error
	saveErr error
	saves   int
}

func (m *memoryRepository) Load(ctx context.Context) ([]entities.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]entities.ConversationTurn(nil), m.turns...), nil
}

func (m *memoryRepository) Save(ctx context.Context, turns []entities.ConversationTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.turns = append([]entities.ConversationTurn(nil), turns...)
	return nil
}

var _ repositories.HistoryRepository = (*memoryRepository)(nil)

func TestAppendPersistsImmediately(t *testing.T) {
	repo := &memoryRepository{}
	c := New(repo, Config{}, zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := c.AppendUser(ctx, 111, "привет"); err != nil {
		t.Fatal(err)
	}
	if repo.saves != 1 || len(repo.turns) != 1 {
		t.Fatalf("Expected user turn to be saved, saves=%d turns=%d", repo.saves, len(repo.turns))
	}

	if err := c.AppendAssistant(ctx, 111, "здравствуй"); err != nil {
		t.Fatal(err)
	}
	if repo.saves != 2 || len(repo.turns) != 2 {
		t.Fatalf("Expected assistant turn to be saved, saves=%d turns=%d", repo.saves, len(repo.turns))
	}

	if repo.turns[0].Role != entities.RoleUser || repo.turns[1].Role != entities.RoleAssistant {
		t.Errorf("Unexpected roles: %s, %s", repo.turns[0].Role, repo.turns[1].Role)
	}
}

func TestBuildRequestShortHistory(t *testing.T) {
	repo := &memoryRepository{}
	c := New(repo, Config{}, zaptest.NewLogger(t))
	ctx := context.Background()

	c.AppendUser(ctx, 111, "q1")
	c.AppendAssistant(ctx, 111, "a1")
	c.AppendUser(ctx, 222, "other user")

	msgs := c.BuildRequest(ctx, 111, "ты помощник")
	if len(msgs) != 4 {
		t.Fatalf("Expected 4 messages (H=2, N=8), got %d", len(msgs))
	}

	if msgs[0].Role != entities.RoleSystem || msgs[0].Content != "ты помощник" {
		t.Errorf("Expected system message first, got %+v", msgs[0])
	}
	if msgs[1].Role != entities.RoleUser || msgs[1].Content != "" {
		t.Errorf("Expected empty user placeholder second, got %+v", msgs[1])
	}
	if msgs[2].Content != "q1" || msgs[3].Content != "a1" {
		t.Errorf("Expected history in order, got %q, %q", msgs[2].Content, msgs[3].Content)
	}
}

func TestBuildRequestTruncatesToWindow(t *testing.T) {
	repo := &memoryRepository{}
	c := New(repo, Config{HistoryLength: 8}, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		c.AppendUser(ctx, 111, fmt.Sprintf("q%d", i))
		c.AppendAssistant(ctx, 111, fmt.Sprintf("a%d", i))
	}

	msgs := c.BuildRequest(ctx, 111, "role")
	if len(msgs) != 10 {
		t.Fatalf("Expected 2+8 messages, got %d", len(msgs))
	}

	// The 8 most recent of 20 turns start at q6
	want := []string{"q6", "a6", "q7", "a7", "q8", "a8", "q9", "a9"}
	for i, w := range want {
		if msgs[i+2].Content != w {
			t.Errorf("Message %d: expected %s, got %s", i+2, w, msgs[i+2].Content)
		}
	}
}

func TestBuildRequestWindowAcrossUsers(t *testing.T) {
	repo := &memoryRepository{}
	c := New(repo, Config{HistoryLength: 2}, zaptest.NewLogger(t))
	ctx := context.Background()

	c.AppendUser(ctx, 1, "mine-1")
	c.AppendUser(ctx, 2, "theirs-1")
	c.AppendUser(ctx, 1, "mine-2")
	c.AppendUser(ctx, 2, "theirs-2")
	c.AppendUser(ctx, 2, "theirs-3")

	window := c.Window(ctx, 1)
	if len(window) != 2 || window[0].Content != "mine-1" || window[1].Content != "mine-2" {
		t.Errorf("Expected only user 1 turns, got %+v", window)
	}
}

func TestLoadFailureKeepsStoredHistory(t *testing.T) {
	repo := &memoryRepository{
		turns: []entities.ConversationTurn{
			entities.NewConversationTurn(111, entities.RoleUser, "old question"),
			entities.NewConversationTurn(111, entities.RoleAssistant, "old answer"),
		},
		loadErr: errors.New("corrupt file"),
	}
	c := New(repo, Config{}, zaptest.NewLogger(t))
	ctx := context.Background()

	msgs := c.BuildRequest(ctx, 111, "role")
	if len(msgs) != 2 {
		t.Errorf("Expected only system and placeholder, got %d messages", len(msgs))
	}

	table, err := c.AppendUser(ctx, 111, "hello")
	if !errors.Is(err, domain.ErrHistoryStore) {
		t.Fatalf("Expected ErrHistoryStore, got %v", err)
	}
	if repo.saves != 0 || len(repo.turns) != 2 {
		t.Errorf("Expected stored history untouched, saves=%d turns=%d", repo.saves, len(repo.turns))
	}
	if len(table) != 1 || table[0].Content != "hello" {
		t.Errorf("Expected returned table to hold the new turn, got %+v", table)
	}

	if err := c.AppendAssistant(ctx, 111, "hi"); !errors.Is(err, domain.ErrHistoryStore) {
		t.Errorf("Expected ErrHistoryStore for assistant turn, got %v", err)
	}
	if repo.saves != 0 {
		t.Errorf("Expected no save after failed load, got %d", repo.saves)
	}
}

func TestUnreadableCSVRowIsNotOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	content := "user_id,role,content,timestamp\n"
	for i := 0; i < 20; i++ {
		content += fmt.Sprintf("111,user,q%d,2024-01-01T00:00:00Z\n", i)
	}
	content += "111,System,hand edited,2024-01-01T00:00:00Z\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(history.NewCSVRepository(path, zaptest.NewLogger(t)), Config{}, zaptest.NewLogger(t))
	if _, err := c.AppendUser(context.Background(), 111, "привет"); !errors.Is(err, domain.ErrHistoryStore) {
		t.Fatalf("Expected ErrHistoryStore, got %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != content {
		t.Errorf("Expected history file unchanged, got %q", after)
	}
}

func TestSaveFailureStillReturnsTable(t *testing.T) {
	repo := &memoryRepository{
		turns: []entities.ConversationTurn{
			entities.NewConversationTurn(111, entities.RoleUser, "раньше"),
		},
	}
	c := New(repo, Config{}, zaptest.NewLogger(t))
	repo.saveErr = errors.New("disk full")

	table, err := c.AppendUser(context.Background(), 111, "сколько времени")
	if !errors.Is(err, domain.ErrHistoryStore) {
		t.Fatalf("Expected ErrHistoryStore, got %v", err)
	}

	msgs := c.RequestFrom(table, 111, "role")
	if len(msgs) != 4 || msgs[3].Content != "сколько времени" {
		t.Errorf("Expected request to end with the pending utterance, got %+v", msgs)
	}
}

func TestDefaultHistoryLength(t *testing.T) {
	c := New(&memoryRepository{}, Config{}, zaptest.NewLogger(t))
	if c.HistoryLength() != 8 {
		t.Errorf("Expected default history length 8, got %d", c.HistoryLength())
	}
}

func TestRoleFileIsReadEveryTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "role.txt")
	if err := os.WriteFile(path, []byte("первая роль"), 0o644); err != nil {
		t.Fatal(err)
	}

	role := RoleFile{Path: path}
	got, err := role.Load()
	if err != nil || got != "первая роль" {
		t.Fatalf("Expected first role, got %q (%v)", got, err)
	}

	if err := os.WriteFile(path, []byte("вторая роль\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = role.Load()
	if err != nil || got != "вторая роль\n" {
		t.Errorf("Expected updated role verbatim, got %q (%v)", got, err)
	}

	if _, err := (RoleFile{Path: filepath.Join(t.TempDir(), "missing.txt")}).Load(); err == nil {
		t.Error("Expected error for missing role file")
	}
}
