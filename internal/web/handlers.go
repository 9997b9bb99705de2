package web

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"mockup-studio/internal/mockup"
	"mockup-studio/internal/session"
)

type slotView struct {
	mockup.Slot
	ImageURL string `json:"image_url,omitempty"`
}

type stateResponse struct {
	SessionID     string              `json:"session_id"`
	Running       bool                `json:"running"`
	Generated     bool                `json:"generated"`
	Status        string              `json:"status"`
	DownloadReady bool                `json:"download_ready"`
	Availability  mockup.Availability `json:"availability"`
	Filled        []int               `json:"filled"`
	HasOutfit     bool                `json:"has_outfit"`
	HasFace       bool                `json:"has_face"`
	Options       mockup.Options      `json:"options"`
	Slots         []slotView          `json:"slots"`
}

func newStateResponse(id string, st mockup.State) stateResponse {
	out := stateResponse{
		SessionID:     id,
		Running:       st.Running,
		Generated:     st.Generated,
		Status:        st.Status,
		DownloadReady: st.DownloadReady,
		Availability:  st.Availability,
		Filled:        st.Filled,
		HasOutfit:     st.HasOutfit,
		HasFace:       st.HasFace,
		Options:       st.Options,
		Slots:         make([]slotView, 0, len(st.Slots)),
	}
	if out.Filled == nil {
		out.Filled = []int{}
	}
	for _, slot := range st.Slots {
		v := slotView{Slot: slot}
		if slot.HasImage() {
			v.ImageURL = fmt.Sprintf("/api/sessions/%s/results/%s/image?e=%d", id, slot.ID, slot.Epoch)
		}
		out.Slots = append(out.Slots, v)
	}
	return out
}

type catalogResponse struct {
	Genders     []string             `json:"genders"`
	Poses       []mockup.NamedOption `json:"poses"`
	Backgrounds []mockup.NamedOption `json:"backgrounds"`
	SlotLabels  []string             `json:"slot_labels"`
	Defaults    mockup.Options       `json:"defaults"`
}

type promptsResponse struct {
	Flatlay string `json:"flatlay"`
	Model   string `json:"model"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.sessions.Len()})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalogResponse{
		Genders:     mockup.Genders(),
		Poses:       mockup.Poses(),
		Backgrounds: mockup.Backgrounds(),
		SlotLabels:  mockup.SlotLabels[:],
		Defaults:    mockup.DefaultOptions(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, newStateResponse(sess.ID, sess.Studio.State()))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, newStateResponse(sess.ID, sess.Studio.State()))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutSlot(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, mockup.ErrSlotIndex)
		return
	}
	part, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	if _, err := sess.Studio.Registry().PutSlotImage(index, part); err != nil {
		writeError(w, err)
		return
	}
	s.respondState(w, sess)
}

func (s *Server) handleClearSlot(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil || index >= mockup.MaxSlots {
		writeError(w, mockup.ErrSlotIndex)
		return
	}
	sess.Studio.Registry().ClearSlot(index)
	s.respondState(w, sess)
}

func (s *Server) handlePutOutfit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	part, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	if _, err := sess.Studio.Registry().PutFullOutfit(part); err != nil {
		writeError(w, err)
		return
	}
	s.respondState(w, sess)
}

func (s *Server) handleClearOutfit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.Studio.Registry().ClearFullOutfit()
	s.respondState(w, sess)
}

func (s *Server) handlePutFace(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	part, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	sess.Studio.Registry().SetFace(part)
	s.respondState(w, sess)
}

func (s *Server) handleClearFace(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.Studio.Registry().ClearFace()
	s.respondState(w, sess)
}

func (s *Server) handlePutOptions(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var opts mockup.Options
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&opts); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json"})
		return
	}
	if _, err := sess.Studio.SetOptions(opts); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error(), Code: "invalid_options"})
		return
	}
	s.respondState(w, sess)
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	flatlay, model := sess.Studio.Prompts()
	writeJSON(w, http.StatusOK, promptsResponse{Flatlay: flatlay, Model: model})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ctx, cancel := s.runContext()
	run, err := sess.Studio.Generate(ctx)
	if err != nil {
		cancel()
		writeError(w, err)
		return
	}
	go func() {
		<-run.Done()
		cancel()
	}()

	s.logger.Info("run accepted", "session", sess.ID, "slots", len(run.Slots))
	writeJSON(w, http.StatusAccepted, newStateResponse(sess.ID, sess.Studio.State()))
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	slot, err := mockup.ParseSlot(mux.Vars(r)["slot"])
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := s.runContext()
	run, err := sess.Studio.Regenerate(ctx, slot)
	if err != nil {
		cancel()
		writeError(w, err)
		return
	}
	go func() {
		<-run.Done()
		cancel()
	}()

	writeJSON(w, http.StatusAccepted, newStateResponse(sess.ID, sess.Studio.State()))
}

func (s *Server) handleSlotImage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	slotID, err := mockup.ParseSlot(mux.Vars(r)["slot"])
	if err != nil {
		writeError(w, err)
		return
	}
	slot, _ := sess.Studio.Tracker().Slot(slotID)
	if !slot.HasImage() {
		writeJSON(w, http.StatusNotFound, apiError{Error: "no image for slot", Code: "no_image"})
		return
	}

	png, err := slot.Image.PNG()
	if err != nil {
		s.logger.Error("png conversion failed", "slot", slotID, "err", err)
		writeError(w, err)
		return
	}

	w.Header().Set("content-type", "image/png")
	w.Header().Set("content-disposition", fmt.Sprintf("inline; filename=%q", slotID.FileName()))
	w.Header().Set("cache-control", "no-store")
	_, _ = w.Write(png)
}

// handleDownload streams every slot image as a zip once all five slots succeeded.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	snap := sess.Studio.Tracker().Snapshot()
	if !snap.DownloadReady {
		writeJSON(w, http.StatusConflict, apiError{Error: "results are not complete", Code: "not_ready"})
		return
	}

	type file struct {
		name string
		data []byte
	}
	var files []file
	for _, slot := range snap.Slots {
		if !slot.HasImage() {
			continue
		}
		png, err := slot.Image.PNG()
		if err != nil {
			writeError(w, fmt.Errorf("%s: %w", slot.ID, err))
			return
		}
		files = append(files, file{name: slot.ID.FileName(), data: png})
	}

	w.Header().Set("content-type", "application/zip")
	w.Header().Set("content-disposition", `attachment; filename="mockups.zip"`)
	zw := zip.NewWriter(w)
	for _, f := range files {
		fw, err := zw.Create(f.name)
		if err != nil {
			s.logger.Error("zip entry failed", "file", f.name, "err", err)
			return
		}
		if _, err := fw.Write(f.data); err != nil {
			s.logger.Error("zip write failed", "file", f.name, "err", err)
			return
		}
	}
	if err := zw.Close(); err != nil {
		s.logger.Error("zip close failed", "err", err)
	}
}

func (s *Server) respondState(w http.ResponseWriter, sess *session.Session) {
	sess.Studio.Notify()
	writeJSON(w, http.StatusOK, newStateResponse(sess.ID, sess.Studio.State()))
}

// readUpload decodes the "image" multipart field. It writes the error
// response itself and reports false on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (mockup.ImagePart, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, apiError{Error: "upload too large", Code: "too_large"})
			return mockup.ImagePart{}, false
		}
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form", Code: "bad_upload"})
		return mockup.ImagePart{}, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing image", Code: "bad_upload"})
		return mockup.ImagePart{}, false
	}
	defer file.Close()

	part, err := mockup.DecodeUpload(file, header.Header.Get("Content-Type"), s.maxUploadDim)
	if err != nil {
		writeError(w, err)
		return mockup.ImagePart{}, false
	}
	return part, true
}
