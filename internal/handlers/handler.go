package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"mockup-studio/internal/mediagroup"
	"mockup-studio/internal/mockup"
	"mockup-studio/internal/session"
	"mockup-studio/internal/telegram"
)

// Messenger is the part of the Telegram client the handler talks to.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTyping(chatID int64)
	SendPhoto(chatID int64, slot mockup.SlotID, img mockup.ImagePart, caption string) error
	SendDocument(chatID int64, slot mockup.SlotID, img mockup.ImagePart) error
	DownloadImage(ctx context.Context, fileID string) (mockup.ImagePart, error)
}

type Options struct {
	Telegram Messenger
	Sessions *session.Store
	Logger   *slog.Logger
	// BaseContext bounds generation runs, which outlive the update that started them.
	BaseContext context.Context
	RunTimeout  time.Duration
}

type Handler struct {
	tg         Messenger
	sessions   *session.Store
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
	baseCtx    context.Context
	runTimeout time.Duration
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	runTimeout := opts.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}

	return &Handler{
		tg:         opts.Telegram,
		sessions:   opts.Sessions,
		logger:     logger,
		baseCtx:    baseCtx,
		runTimeout: runTimeout,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func sessionKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

func (h *Handler) session(chatID, userID int64) *session.Session {
	return h.sessions.GetOrCreate(sessionKey(chatID, userID))
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}

	chatID := msg.Chat.ID
	sess := h.session(chatID, msg.From.ID)

	if msg.IsCommand() {
		return h.handleCommand(chatID, sess, msg)
	}

	if fileID := imageFileID(msg); fileID != "" {
		if msg.MediaGroupID != "" && h.aggregator != nil {
			h.aggregator.Add(mediagroup.Photo{
				ChatID:       chatID,
				UserID:       msg.From.ID,
				MediaGroupID: msg.MediaGroupID,
				Caption:      msg.Caption,
				FileID:       fileID,
			})
			return nil
		}
		return h.storePhotos(ctx, chatID, sess, []string{fileID}, 0)
	}

	if text := strings.TrimSpace(msg.Text); text != "" {
		return h.handleText(chatID, sess, text)
	}

	return nil
}

// HandleAlbum stores every photo of a flushed album.
func (h *Handler) HandleAlbum(ctx context.Context, album mediagroup.Album) {
	sess := h.session(album.ChatID, album.UserID)
	if err := h.storePhotos(ctx, album.ChatID, sess, album.FileIDs, album.Dropped); err != nil {
		h.logger.Error("album processing failed", "chat_id", album.ChatID, "err", err)
	}
}

// imageFileID picks the largest photo size, or an image sent as a document.
func imageFileID(msg *tgbotapi.Message) string {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID
	}
	return ""
}

func (h *Handler) handleText(chatID int64, sess *session.Session, text string) error {
	if sess.TakeTarget() != session.TargetOptions {
		return h.tg.SendText(chatID, "Kirim foto produk, atau ketik /help untuk daftar perintah.")
	}
	return h.setInstructions(chatID, sess, text)
}

func (h *Handler) storePhotos(ctx context.Context, chatID int64, sess *session.Session, fileIDs []string, dropped int) error {
	h.tg.SendTyping(chatID)

	parts := make([]mockup.ImagePart, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		eg.Go(func() error {
			part, err := h.tg.DownloadImage(egCtx, fileID)
			if err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("photo download failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "❌ Gagal mengunduh foto. Coba kirim ulang.")
	}

	reg := sess.Studio.Registry()
	var notes []string
	switch sess.TakeTarget() {
	case session.TargetOutfit:
		if _, err := reg.PutFullOutfit(parts[0]); err != nil {
			notes = append(notes, "❌ Outfit lengkap tidak bisa dipakai bersama foto produk satuan. Gunakan /clear dulu.")
		} else {
			notes = append(notes, "✅ Outfit lengkap tersimpan.")
		}
		dropped += len(parts) - 1
	case session.TargetFace:
		reg.SetFace(parts[0])
		notes = append(notes, "✅ Foto wajah referensi tersimpan.")
		dropped += len(parts) - 1
	default:
		for _, part := range parts {
			index, _, err := reg.PutNextSlotImage(part)
			if errors.Is(err, mockup.ErrSlotUnavailable) {
				notes = append(notes, "❌ Slot produk nonaktif karena outfit lengkap sudah diunggah.")
				break
			}
			if err != nil {
				dropped++
				continue
			}
			notes = append(notes, fmt.Sprintf("✅ %s tersimpan (slot %d).", mockup.SlotLabels[index], index+1))
		}
	}
	if dropped > 0 {
		notes = append(notes, fmt.Sprintf("⚠️ %d foto dilewati, maksimal %d produk.", dropped, mockup.MaxSlots))
	}

	sess.Studio.Notify()
	notes = append(notes, "Ketik /generate untuk membuat mockup.")
	return h.tg.SendText(chatID, strings.Join(notes, "\n"))
}

// deliver waits for a run and sends every slot it covered.
func (h *Handler) deliver(ctx context.Context, chatID int64, sess *session.Session, run *mockup.Run) {
	if err := run.Wait(ctx); err != nil {
		h.logger.Warn("run wait aborted", "session", sess.ID, "err", err)
		return
	}

	tracker := sess.Studio.Tracker()
	for _, id := range run.Slots {
		slot, ok := tracker.Slot(id)
		if !ok {
			continue
		}
		if err := h.sendSlot(chatID, slot); err != nil {
			h.logger.Error("send slot failed", "session", sess.ID, "slot", id, "err", err)
		}
	}

	if tracker.DownloadReady() {
		_ = h.tg.SendText(chatID, "🎉 Semua mockup siap.")
	} else {
		_ = h.tg.SendText(chatID, "Ada slot yang gagal. Ketik /regen <slot> untuk mencoba lagi.")
	}
}

func (h *Handler) sendSlot(chatID int64, slot mockup.Slot) error {
	name := slotTitle(slot.ID)
	switch {
	case slot.Skipped:
		return h.tg.SendText(chatID, fmt.Sprintf("ℹ️ %s: %s", name, mockup.MessageFlatlaySkipped))
	case slot.HasImage():
		return h.tg.SendPhoto(chatID, slot.ID, slot.Image, slotCaption(slot))
	case slot.State == mockup.StateError:
		return h.tg.SendText(chatID, fmt.Sprintf("❌ %s: %s\n/regen %s", name, slot.Message, slot.ID))
	}
	return nil
}

func slotTitle(id mockup.SlotID) string {
	if id == mockup.SlotFlatlay {
		return "Flat lay"
	}
	return "Model " + strings.TrimPrefix(string(id), "model")
}

func slotCaption(slot mockup.Slot) string {
	caption := slotTitle(slot.ID)
	if !slot.ID.IsModel() {
		return caption
	}
	switch slot.Video.State {
	case mockup.VideoReady, mockup.VideoFailed:
		caption += "\n\n🎬 Prompt video:\n" + slot.Video.Text
	}
	return caption
}

func (h *Handler) runContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.baseCtx, h.runTimeout)
}
