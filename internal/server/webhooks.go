package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// WebhookResponse summarises what happened to a webhook batch.
// The indexer only needs to know the batch was received; per-item outcomes
// are informational.
type WebhookResponse struct {
	Received int            `json:"received"`
	Outcomes map[string]int `json:"outcomes"`
}

// ledgerWebhookHandler handles POST /webhooks/ledger.
// Every decodable batch is answered with 200 so the indexer does not retry;
// failed events are expected to be redelivered by the indexer's own schedule.
func (s *Server) ledgerWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var events []duel.LedgerEvent
	if err := decodeBatch(r.Body, &events); err != nil {
		writeError(w, http.StatusBadRequest, "invalid ledger payload: %v", err)
		return
	}

	resp := WebhookResponse{Received: len(events), Outcomes: make(map[string]int)}
	for _, ev := range events {
		outcome, err := s.cfg.Ingester.Ingest(r.Context(), ev)
		if err != nil {
			log.Printf("[Server] Ledger event %s: %s: %v", ev.Signature, outcome, err)
		}
		resp.Outcomes[string(outcome)]++
	}

	writeJSON(w, http.StatusOK, resp)
}

// socialWebhookHandler handles POST /webhooks/social.
func (s *Server) socialWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var posts []duel.Post
	if err := decodeBatch(r.Body, &posts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid social payload: %v", err)
		return
	}

	resp := WebhookResponse{Received: len(posts), Outcomes: make(map[string]int)}
	for _, post := range posts {
		result, err := s.cfg.Posts.HandlePost(r.Context(), post)
		if err != nil {
			log.Printf("[Server] Post %s: %v", post.ID, err)
			resp.Outcomes["error"]++
			continue
		}
		resp.Outcomes[string(result.Kind)]++
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeBatch decodes either a JSON array or a single JSON object into out,
// which must point to a slice.
func decodeBatch[T any](body io.Reader, out *[]T) error {
	data, err := io.ReadAll(io.LimitReader(body, maxWebhookBytes+1))
	if err != nil {
		return err
	}
	if len(data) > maxWebhookBytes {
		return fmt.Errorf("body exceeds %d bytes", maxWebhookBytes)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty body")
	}

	if data[0] == '[' {
		return json.Unmarshal(data, out)
	}

	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*out = []T{one}
	return nil
}
