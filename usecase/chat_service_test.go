package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unclepete-20/chatbot-test/adapters/message_broker"
	"github.com/unclepete-20/chatbot-test/adapters/session"
	"github.com/unclepete-20/chatbot-test/domain"
	"github.com/unclepete-20/chatbot-test/prompt"
)

const waitTimeout = 2 * time.Second

type mockLLM struct {
	mu       sync.Mutex
	requests []domain.CompletionRequest
	reply    func(req domain.CompletionRequest) (string, error)
}

func (m *mockLLM) Complete(ctx context.Context, req domain.CompletionRequest) (domain.ChatMessage, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	text, err := m.reply(req)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return domain.ChatMessage{Role: domain.AssistantRole, Content: text}, nil
}

func (m *mockLLM) Requests() []domain.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CompletionRequest(nil), m.requests...)
}

// echoLLM answers the welcome with a fixed greeting and every turn with
// "re: <last user message>".
func echoLLM() *mockLLM {
	return &mockLLM{reply: func(req domain.CompletionRequest) (string, error) {
		if req.Profile == domain.WelcomeProfile {
			return "Soy un asistente de residuos.", nil
		}
		return "re: " + req.Messages[len(req.Messages)-1].Content, nil
	}}
}

type conn struct {
	input  chan string
	output chan domain.Reply
	done   chan error
}

func start(t *testing.T, svc *ChatService, id string) *conn {
	t.Helper()
	c := &conn{
		input:  make(chan string),
		output: make(chan domain.Reply, 8),
		done:   make(chan error, 1),
	}
	go func() { c.done <- svc.Execute(context.Background(), id, c.input, c.output) }()
	return c
}

func (c *conn) recv(t *testing.T) domain.Reply {
	t.Helper()
	select {
	case r := <-c.output:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for reply")
		return domain.Reply{}
	}
}

func (c *conn) say(t *testing.T, text string) {
	t.Helper()
	select {
	case c.input <- text:
	case <-time.After(waitTimeout):
		t.Fatal("relay loop is not receiving")
	}
}

func (c *conn) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-c.done:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("relay loop did not stop")
		return nil
	}
}

func newStore(t *testing.T, mode domain.HistoryMode) *session.MemoryStore {
	t.Helper()
	store, err := session.NewMemoryStore(mode, "rules", domain.DefaultMaxMessages)
	require.NoError(t, err)
	return store
}

func TestExecute_WelcomeThenTurn(t *testing.T) {
	llm := echoLLM()
	store := newStore(t, domain.SessionHistory)
	svc := NewChatService(llm, store, nil)
	c := start(t, svc, "s1")

	welcome := c.recv(t)
	require.Equal(t, domain.Reply{Kind: domain.ReplyKindReply, Text: "Soy un asistente de residuos.", Welcome: true}, welcome)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, domain.WelcomeProfile, reqs[0].Profile)
	require.Equal(t, []domain.ChatMessage{
		{Role: domain.SystemRole, Content: "rules"},
		{Role: domain.UserRole, Content: prompt.WelcomeQuestion},
	}, reqs[0].Messages)

	sess, err := store.Open(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 1, sess.Conversation.Len(), "welcome must not touch the history")

	c.say(t, "hola")
	require.Equal(t, domain.Reply{Kind: domain.ReplyKindReply, Text: "re: hola"}, c.recv(t))

	reqs = llm.Requests()
	require.Len(t, reqs, 2)
	require.Equal(t, domain.TurnProfile, reqs[1].Profile)
	require.Len(t, reqs[1].Messages, 2)

	require.Equal(t, []domain.ChatMessage{
		{Role: domain.SystemRole, Content: "rules"},
		{Role: domain.UserRole, Content: "hola"},
		{Role: domain.AssistantRole, Content: "re: hola"},
	}, sess.Conversation.Snapshot())

	close(c.input)
	require.NoError(t, c.wait(t))
	require.Zero(t, store.Len())
}

func TestExecute_BoundReached(t *testing.T) {
	llm := echoLLM()
	store := newStore(t, domain.SessionHistory)
	sess, err := store.Open(context.Background(), "s1")
	require.NoError(t, err)
	for i := 1; i < domain.DefaultMaxMessages; i++ {
		role := domain.UserRole
		if i%2 == 0 {
			role = domain.AssistantRole
		}
		require.NoError(t, sess.Conversation.Append(domain.ChatMessage{Role: role, Content: fmt.Sprintf("m%d", i)}))
	}
	require.Equal(t, domain.DefaultMaxMessages, sess.Conversation.Len())
	before := sess.Conversation.Snapshot()

	svc := NewChatService(llm, store, nil)
	c := start(t, svc, "s1")
	c.recv(t)

	c.say(t, "nuevo")
	require.Equal(t, "re: nuevo", c.recv(t).Text)

	sent := llm.Requests()[1].Messages
	require.Len(t, sent, domain.DefaultMaxMessages)
	require.NotContains(t, sent, before[1])
	require.Equal(t, domain.ChatMessage{Role: domain.UserRole, Content: "nuevo"}, sent[len(sent)-1])

	after := sess.Conversation.Snapshot()
	require.Len(t, after, domain.DefaultMaxMessages)
	require.Equal(t, domain.SystemRole, after[0].Role)
	require.NotContains(t, after, before[1])
	require.Equal(t, domain.ChatMessage{Role: domain.UserRole, Content: "nuevo"}, after[len(after)-2])
	require.Equal(t, domain.ChatMessage{Role: domain.AssistantRole, Content: "re: nuevo"}, after[len(after)-1])

	close(c.input)
	require.NoError(t, c.wait(t))
}

func TestExecute_TurnFailureClosesConnection(t *testing.T) {
	boom := errors.New("upstream unavailable")
	llm := &mockLLM{reply: func(req domain.CompletionRequest) (string, error) {
		if req.Profile == domain.WelcomeProfile {
			return "hola", nil
		}
		return "", boom
	}}
	svc := NewChatService(llm, newStore(t, domain.SessionHistory), nil)
	c := start(t, svc, "s1")
	c.recv(t)

	c.say(t, "¿qué hago con el duroport?")
	r := c.recv(t)
	require.Equal(t, domain.ReplyKindError, r.Kind)
	require.Contains(t, r.Text, "upstream unavailable")

	err := c.wait(t)
	require.ErrorIs(t, err, ErrTurnFailed)
	require.ErrorIs(t, err, boom)

	select {
	case c.input <- "¿sigues ahí?":
		t.Fatal("closed loop must not receive")
	case <-time.After(50 * time.Millisecond):
	}
	require.Empty(t, c.output)
}

func TestExecute_WelcomeFailureIsNotFatal(t *testing.T) {
	llm := &mockLLM{reply: func(req domain.CompletionRequest) (string, error) {
		if req.Profile == domain.WelcomeProfile {
			return "", domain.ErrEmptyCompletion
		}
		return "Va en el negro.", nil
	}}
	svc := NewChatService(llm, newStore(t, domain.SessionHistory), nil)
	c := start(t, svc, "s1")

	r := c.recv(t)
	require.Equal(t, domain.ReplyKindError, r.Kind)
	require.True(t, r.Welcome)
	require.Equal(t, domain.ErrEmptyCompletion.Error(), r.Text)

	c.say(t, "pañales")
	require.Equal(t, domain.Reply{Kind: domain.ReplyKindReply, Text: "Va en el negro."}, c.recv(t))

	close(c.input)
	require.NoError(t, c.wait(t))
}

func TestExecute_PeerDisconnectIsSilent(t *testing.T) {
	svc := NewChatService(echoLLM(), newStore(t, domain.SessionHistory), nil)
	c := start(t, svc, "s1")
	c.recv(t)

	close(c.input)
	require.NoError(t, c.wait(t))
	require.Empty(t, c.output)
}

func TestExecute_CancelledContext(t *testing.T) {
	llm := &mockLLM{reply: func(req domain.CompletionRequest) (string, error) {
		return "", context.Canceled
	}}
	svc := NewChatService(llm, newStore(t, domain.SessionHistory), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.Execute(ctx, "s1", make(chan string), make(chan domain.Reply))
	require.NoError(t, err)
}

func TestExecute_IgnoresBlankMessages(t *testing.T) {
	llm := echoLLM()
	svc := NewChatService(llm, newStore(t, domain.SessionHistory), nil)
	c := start(t, svc, "s1")
	c.recv(t)

	c.say(t, "   ")
	c.say(t, "latas")
	require.Equal(t, "re: latas", c.recv(t).Text)
	require.Len(t, llm.Requests(), 2)

	close(c.input)
	require.NoError(t, c.wait(t))
}

// gatedLLM blocks every turn call until release is closed and reports each
// call on entered.
func gatedLLM(entered chan<- struct{}, release <-chan struct{}) *mockLLM {
	return &mockLLM{reply: func(req domain.CompletionRequest) (string, error) {
		if req.Profile == domain.WelcomeProfile {
			return "hola", nil
		}
		entered <- struct{}{}
		<-release
		return "re: " + req.Messages[len(req.Messages)-1].Content, nil
	}}
}

func waitEntered(t *testing.T, entered <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-entered:
		case <-time.After(waitTimeout):
			t.Fatalf("only %d of %d turns reached the model", i, n)
		}
	}
}

func contents(msgs []domain.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

// TestExecute_SharedHistoryCrossTalk documents that in shared mode two
// connections whose turns overlap see each other's messages.
func TestExecute_SharedHistoryCrossTalk(t *testing.T) {
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	llm := gatedLLM(entered, release)
	store := newStore(t, domain.SharedHistory)
	svc := NewChatService(llm, store, nil)

	a := start(t, svc, "a")
	b := start(t, svc, "b")
	a.recv(t)
	b.recv(t)

	a.say(t, "from-a")
	b.say(t, "from-b")
	waitEntered(t, entered, 2)
	close(release)

	require.Equal(t, "re: from-a", a.recv(t).Text)
	require.Equal(t, "re: from-b", b.recv(t).Text)

	sess, err := store.Open(context.Background(), "probe")
	require.NoError(t, err)
	history := contents(sess.Conversation.Snapshot())
	require.Len(t, history, 5)
	require.ElementsMatch(t, []string{"from-a", "from-b"}, history[1:3])
	require.ElementsMatch(t, []string{"re: from-a", "re: from-b"}, history[3:5])

	crossTalk := false
	for _, req := range llm.Requests() {
		sent := contents(req.Messages)
		if req.Profile == domain.TurnProfile && len(sent) == 3 {
			crossTalk = true
		}
	}
	require.True(t, crossTalk, "the later turn should carry the other connection's message")

	close(a.input)
	close(b.input)
	require.NoError(t, a.wait(t))
	require.NoError(t, b.wait(t))
}

func TestExecute_SessionHistoryIsolation(t *testing.T) {
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	llm := gatedLLM(entered, release)
	svc := NewChatService(llm, newStore(t, domain.SessionHistory), nil)

	a := start(t, svc, "a")
	b := start(t, svc, "b")
	a.recv(t)
	b.recv(t)

	a.say(t, "from-a")
	b.say(t, "from-b")
	waitEntered(t, entered, 2)
	close(release)

	require.Equal(t, "re: from-a", a.recv(t).Text)
	require.Equal(t, "re: from-b", b.recv(t).Text)

	for _, req := range llm.Requests() {
		if req.Profile != domain.TurnProfile {
			continue
		}
		require.Len(t, req.Messages, 2)
	}

	close(a.input)
	close(b.input)
	require.NoError(t, a.wait(t))
	require.NoError(t, b.wait(t))
}

func TestExecute_PublishesTurnEvents(t *testing.T) {
	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := broker.Subscribe(ctx, domain.TurnTopic, "s1")
	require.NoError(t, err)

	svc := NewChatService(echoLLM(), newStore(t, domain.SessionHistory), broker)
	c := start(t, svc, "s1")
	c.recv(t)
	c.say(t, "vidrio")
	c.recv(t)
	close(c.input)
	require.NoError(t, c.wait(t))

	var got []domain.TurnEvent
	for len(got) < 2 {
		select {
		case msg := <-events:
			var ev domain.TurnEvent
			require.NoError(t, json.Unmarshal(msg.Payload, &ev))
			got = append(got, ev)
		case <-time.After(waitTimeout):
			t.Fatalf("got %d turn events, want 2", len(got))
		}
	}

	require.True(t, got[0].Welcome)
	require.True(t, got[0].Success)
	require.False(t, got[1].Welcome)
	require.True(t, got[1].Success)
	require.Equal(t, "s1", got[1].SessionID)
	require.Equal(t, 3, got[1].HistoryLen)
}
