package conversation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlaherrera/apina-front/internal/ixc"
	"github.com/carlaherrera/apina-front/internal/nlu"
	"github.com/carlaherrera/apina-front/internal/scheduling"
	"github.com/carlaherrera/apina-front/pkg/logging"
)

// scriptedLLM answers with the queued texts in order and fails once they run out.
type scriptedLLM struct {
	mu      sync.Mutex
	answers []string
}

func (s *scriptedLLM) Complete(context.Context, nlu.LLMRequest) (nlu.LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.answers) == 0 {
		return nlu.LLMResponse{}, errors.New("model unavailable")
	}
	text := s.answers[0]
	s.answers = s.answers[1:]
	return nlu.LLMResponse{Text: text}, nil
}

func TestIntentCatalogCoversFallback(t *testing.T) {
	labels := map[string]bool{}
	for _, it := range IntentCatalog() {
		assert.NotEmpty(t, it.Description, it.Label)
		labels[it.Label] = true
	}
	assert.True(t, labels[FallbackIntent])
	assert.Equal(t, IntentFinished, FallbackIntent)
}

func TestOutOfCatalogAnswerClosesConversation(t *testing.T) {
	logger := logging.NewWithWriter("error", io.Discard)
	store := NewMemoryStore()
	llm := &scriptedLLM{answers: []string{`{"intent": "dance"}`}}
	interpreter := nlu.NewInterpreter(llm, nlu.Options{
		Intents:        IntentCatalog(),
		FallbackIntent: FallbackIntent,
		Logger:         logger,
	})
	planner := scheduling.NewEngine(&fakeOccupancy{}, scheduling.EngineConfig{Now: fixedNow, Logger: logger})
	engine := NewEngine(Config{
		Store:      store,
		CRM:        &fakeCRM{customers: map[string]ixc.Customer{}},
		Negotiator: scheduling.NewNegotiator(planner, logger),
		Language:   interpreter,
		Snapshots:  NewLogSink(logger),
		Logger:     logger,
	})
	t.Cleanup(engine.Drain)

	res, err := engine.HandleTurn(context.Background(), testSender, "bora dançar?")
	require.NoError(t, err)

	assert.Equal(t, IntentFinished, res.Intent)
	assert.Equal(t, "Obrigado pelo contato! Se precisar de algo, é só me chamar.", res.Reply)
	assert.Nil(t, res.Session.SelectedOrder)
	assert.False(t, res.Session.Identified())
}
