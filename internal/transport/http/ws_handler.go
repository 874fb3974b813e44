package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"training-quiz-service/internal/app"
	"training-quiz-service/internal/domain"
)

// WSHandler serves the quiz-taking session: one websocket per attempt,
// carrying answer/navigation/submit commands in and snapshot/result pushes
// out.
type WSHandler struct {
	service  *app.AttemptService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// questionView is the learner-facing question shape: no correct answer, no
// explanation until the question is answered.
type questionView struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Options    []string `json:"options"`
	Points     int      `json:"points"`
	OrderIndex int      `json:"orderIndex"`
	ImageURL   string   `json:"imageUrl,omitempty"`
}

type startedPayload struct {
	AttemptID        string         `json:"attemptId"`
	QuizID           string         `json:"quizId"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	PassingScore     int            `json:"passingScore"`
	TimeLimitMinutes int            `json:"timeLimitMinutes"`
	Questions        []questionView `json:"questions"`
}

type answerAck struct {
	QuestionID  string `json:"questionId"`
	Explanation string `json:"explanation,omitempty"`
}

// resultPayload feeds the results view: the finalized attempt plus the full
// question set (answers included) for the review.
type resultPayload struct {
	Attempt   domain.Attempt    `json:"attempt"`
	Passed    bool              `json:"passed"`
	Questions []domain.Question `json:"questions,omitempty"`
}

// ServeWS upgrades the request and drives one quiz attempt over the socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	controller, err := h.service.Start(r.Context(), quizID, userID)
	if err != nil {
		h.handleStartError(r, conn, quizID, userID, err)
		return
	}
	defer h.service.Release(controller.AttemptID())

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	quiz := controller.Quiz()
	questions := controller.Questions()

	trySend(send, closeSignals, writerDone, outboundMessage[any]{Type: "started", Payload: startedPayload{
		AttemptID:        controller.AttemptID(),
		QuizID:           quiz.ID,
		Title:            quiz.Title,
		Description:      quiz.Description,
		PassingScore:     quiz.PassingScore,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		Questions:        viewQuestions(questions),
	}})

	updates, cancel := controller.Subscribe()
	defer cancel()

	go func() {
		defer close(updatesDone)
		resultSent := false
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				if !trySend(send, closeSignals, writerDone, outboundMessage[any]{Type: "snapshot", Payload: snap}) {
					return
				}
				if snap.State == app.StateFinalized && snap.Finalized != nil && !resultSent {
					resultSent = true
					result := resultPayload{
						Attempt:   *snap.Finalized,
						Passed:    app.Passed(*snap.Finalized.Score, quiz.PassingScore),
						Questions: questions,
					}
					if !trySend(send, closeSignals, writerDone, outboundMessage[any]{Type: "result", Payload: result}) {
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				trySend(send, closeSignals, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			if err := controller.RecordAnswer(payload.QuestionID, payload.Value); err != nil {
				trySend(send, closeSignals, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			trySend(send, closeSignals, writerDone, outboundMessage[any]{Type: "answerAck", Payload: answerAck{
				QuestionID:  payload.QuestionID,
				Explanation: explanationFor(questions, payload.QuestionID),
			}})
		case "goto":
			var payload gotoPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				trySend(send, closeSignals, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid goto payload"}})
				continue
			}
			controller.GoTo(payload.Index)
		case "next":
			controller.Next()
		case "previous":
			controller.Previous()
		case "submit":
			if _, err := controller.Submit(r.Context()); err != nil {
				// The attempt stays Submitting; the client may retry.
				trySend(send, closeSignals, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			}
		default:
			trySend(send, closeSignals, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// trySend queues msg for the writer goroutine. It never blocks past
// connection shutdown: a closed closeSignals or an exited writer makes it
// drop the message instead.
func trySend(send chan<- outboundMessage[any], closeSignals, writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-closeSignals:
		return false
	case <-writerDone:
		return false
	}
}

// handleStartError distinguishes "no retries left" (short-circuit to the
// last result) from genuine start failures.
func (h *WSHandler) handleStartError(r *http.Request, conn *websocket.Conn, quizID, userID string, err error) {
	if errors.Is(err, domain.ErrAttemptLimitExceeded) {
		latest, ok, lerr := h.service.LatestCompleted(r.Context(), userID, quizID)
		if lerr == nil && ok && latest.Score != nil {
			passed := false
			if quiz, qerr := h.service.Quiz(r.Context(), quizID); qerr == nil {
				passed = app.Passed(*latest.Score, quiz.PassingScore)
			}
			_ = conn.WriteJSON(outboundMessage[resultPayload]{Type: "result", Payload: resultPayload{
				Attempt: latest,
				Passed:  passed,
			}})
			return
		}
	}
	_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
}

func viewQuestions(questions []domain.Question) []questionView {
	out := make([]questionView, 0, len(questions))
	for _, q := range questions {
		options := q.Options
		if q.Type == domain.TrueFalse {
			options = domain.TrueFalseOptions
		}
		out = append(out, questionView{
			ID:         q.ID,
			Text:       q.Text,
			Type:       string(q.Type),
			Options:    options,
			Points:     q.Points,
			OrderIndex: q.OrderIndex,
			ImageURL:   q.ImageURL,
		})
	}
	return out
}

func explanationFor(questions []domain.Question, questionID string) string {
	for _, q := range questions {
		if q.ID == questionID {
			return q.Explanation
		}
	}
	return ""
}
