package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"ocsbridge/internal/db"
	"ocsbridge/internal/events"
	"ocsbridge/internal/ingest"
)

// SubmitOCS handles POST /ocsinventory, the endpoint legacy OCS agents
// post their PROLOG probe and full inventory to. Every outcome, including
// a panic, is answered with a <REPLY> document.
func (h *InventoryHandler) SubmitOCS(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("❌ OCS submission panic from %s: %v", r.RemoteAddr, rec)
			XMLResponse(w, ingest.ErrorReply("internal server error"), http.StatusInternalServerError)
		}
	}()

	body, err := h.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			XMLResponse(w, ingest.ErrorReply(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)),
				http.StatusRequestEntityTooLarge)
			return
		}
		log.Printf("❌ Failed to read OCS body from %s: %v", r.RemoteAddr, err)
		XMLResponse(w, ingest.ErrorReply("failed to read request body"), http.StatusBadRequest)
		return
	}

	text := ingest.DecodeBody(body, r.Header.Get("Content-Type"))

	if ingest.Classify(text) == ingest.KindHandshake {
		log.Printf("🤝 OCS handshake from %s", r.RemoteAddr)
		h.Bus.Publish(events.Event{
			Type:     events.HandshakeReceived,
			Severity: events.SeverityInfo,
			Source:   db.SourceOCS,
			Message:  "Agent handshake from " + r.RemoteAddr,
		})
		XMLResponse(w, ingest.HandshakeReply(), http.StatusOK)
		return
	}

	rec, err := ingest.ParseInventoryXML(text)
	if err != nil {
		code := ingest.StatusFor(err)
		log.Printf("❌ Rejected OCS inventory from %s (%d): %v", r.RemoteAddr, code, err)
		XMLResponse(w, ingest.ErrorReply(err.Error()), code)
		return
	}

	res, err := h.Store.SaveInventory(r.Context(), rec, db.SourceOCS)
	if err != nil {
		log.Printf("❌ Failed to store OCS inventory for %s: %v", rec.DeviceID, err)
		XMLResponse(w, ingest.ErrorReply("database error: "+err.Error()), http.StatusInternalServerError)
		return
	}

	h.announce(rec, res, db.SourceOCS)
	XMLResponse(w, ingest.AcceptedReply(), http.StatusOK)
}

func (h *InventoryHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	reader := io.Reader(r.Body)
	if h.MaxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}
	return io.ReadAll(reader)
}
