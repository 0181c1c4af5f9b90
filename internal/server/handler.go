package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/devlogkit/devlog/internal/event"
	"github.com/devlogkit/devlog/internal/runstore"
)

// Handler terminates GitHub webhook deliveries and exposes the run
// history pages.
type Handler struct {
	webhookSecret string
	dispatcher    *Dispatcher
	runs          *runstore.Store
}

// NewHandler creates a webhook handler.
func NewHandler(webhookSecret string, dispatcher *Dispatcher, runs *runstore.Store) *Handler {
	return &Handler{
		webhookSecret: webhookSecret,
		dispatcher:    dispatcher,
		runs:          runs,
	}
}

// RegisterRoutes attaches all endpoints to the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/webhook", h.HandleWebhook).Methods("POST")
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/runs", h.handleRunList).Methods("GET")
	r.HandleFunc("/runs/{id}", h.handleRunDetail).Methods("GET")
	r.HandleFunc("/", h.handleRoot).Methods("GET")
}

// peekPayload is the slice of any event payload the handler needs
// before queueing.
type peekPayload struct {
	Action     string `json:"action"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

// HandleWebhook verifies and enqueues a GitHub webhook delivery.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[Webhook] Error reading payload: %v", err)
		http.Error(w, "Error reading payload", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if err := ValidateSignatureHeader(signature); err != nil {
		log.Printf("[Webhook] Invalid signature header: %v", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}
	if !VerifySignature(payload, signature, h.webhookSecret) {
		log.Printf("[Webhook] Signature verification failed")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	switch eventType {
	case "ping":
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
		return
	case event.NamePush, event.NameIssues, event.NameIssueComment:
	default:
		log.Printf("[Webhook] Ignoring event type %q", eventType)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "event": eventType})
		return
	}

	var peek peekPayload
	if err := json.Unmarshal(payload, &peek); err != nil {
		log.Printf("[Webhook] Malformed %s payload: %v", eventType, err)
		http.Error(w, "Malformed payload", http.StatusBadRequest)
		return
	}
	if peek.Repository.FullName == "" {
		http.Error(w, "Malformed payload", http.StatusBadRequest)
		return
	}
	if event.SkipActor(peek.Sender.Login) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "actor": peek.Sender.Login})
		return
	}

	job := &Job{
		ID:      deliveryID(r),
		Event:   eventType,
		Action:  peek.Action,
		Repo:    peek.Repository.FullName,
		Payload: payload,
	}

	if h.runs != nil {
		h.runs.Create(&runstore.Run{
			ID:     job.ID,
			Event:  job.Event,
			Action: job.Action,
			Repo:   job.Repo,
		})
	}

	if err := h.dispatcher.Enqueue(job); err != nil {
		if h.runs != nil {
			h.runs.UpdateStatus(job.ID, runstore.StatusFailed, err.Error())
		}
		switch {
		case errors.Is(err, ErrQueueFull):
			http.Error(w, "Queue full, retry later", http.StatusServiceUnavailable)
		case errors.Is(err, ErrQueueClosed):
			http.Error(w, "Shutting down", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Enqueue failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "run_id": job.ID})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "devlog-server",
		"status":  "running",
	})
}

// deliveryID prefers GitHub's delivery GUID so retried deliveries are
// traceable back to the GitHub UI.
func deliveryID(r *http.Request) string {
	if id := r.Header.Get("X-GitHub-Delivery"); id != "" {
		return id
	}
	return fmt.Sprintf("local-%d", time.Now().UnixNano())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
