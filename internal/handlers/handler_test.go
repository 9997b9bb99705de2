package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mockup-studio/internal/mediagroup"
	"mockup-studio/internal/mockup"
	"mockup-studio/internal/session"
)

type sentPhoto struct {
	slot    mockup.SlotID
	caption string
}

type fakeMessenger struct {
	mu        sync.Mutex
	texts     []string
	photos    []sentPhoto
	documents []mockup.SlotID
}

func (f *fakeMessenger) SendText(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendTyping(chatID int64) {}

func (f *fakeMessenger) SendPhoto(chatID int64, slot mockup.SlotID, img mockup.ImagePart, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, sentPhoto{slot: slot, caption: caption})
	return nil
}

func (f *fakeMessenger) SendDocument(chatID int64, slot mockup.SlotID, img mockup.ImagePart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, slot)
	return nil
}

func (f *fakeMessenger) DownloadImage(ctx context.Context, fileID string) (mockup.ImagePart, error) {
	return mockup.ImagePart{Data: fileID, MimeType: "image/png"}, nil
}

func (f *fakeMessenger) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeMessenger) sent(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.texts {
		if t == text {
			return true
		}
	}
	return false
}

func (f *fakeMessenger) photoCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.photos)
}

type fakeGenerator struct{}

func (fakeGenerator) GenerateImage(ctx context.Context, prompt string, images []mockup.ImagePart) (mockup.ImagePart, error) {
	return mockup.ImagePart{Data: "aW1n", MimeType: "image/png"}, nil
}

func (fakeGenerator) DescribeImage(ctx context.Context, img mockup.ImagePart, instruction string) (string, error) {
	return "camera orbits slowly", nil
}

func newTestHandler() (*Handler, *fakeMessenger, *session.Store) {
	store := session.NewStore(session.Options{
		TTL: time.Minute,
		NewStudio: func() *mockup.Studio {
			return mockup.NewStudio(mockup.StudioOptions{
				Images:         fakeGenerator{},
				Text:           fakeGenerator{},
				StatusInterval: time.Hour,
			})
		},
	})
	tg := &fakeMessenger{}
	return New(Options{Telegram: tg, Sessions: store}), tg, store
}

func command(text string) tgbotapi.Update {
	cmd := strings.SplitN(text, " ", 2)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 10},
		From:     &tgbotapi.User{ID: 20},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func photo(fileID, group string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:         &tgbotapi.Chat{ID: 10},
		From:         &tgbotapi.User{ID: 20},
		MediaGroupID: group,
		Photo:        []tgbotapi.PhotoSize{{FileID: fileID + "-small"}, {FileID: fileID}},
	}}
}

func TestPhotosFillSlotsInOrder(t *testing.T) {
	h, tg, store := newTestHandler()
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo("YQ==", "")))
	require.NoError(t, h.HandleUpdate(ctx, photo("Yg==", "")))

	assets := store.GetOrCreate(sessionKey(10, 20)).Studio.Registry().Snapshot()
	assert.Equal(t, []int{0, 1}, assets.Filled())
	assert.Equal(t, "Yg==", assets.Slots[1].Data)
	assert.Contains(t, tg.lastText(), mockup.SlotLabels[1])
}

func TestOutfitCommandRedirectsNextPhoto(t *testing.T) {
	h, _, store := newTestHandler()
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, command("/outfit")))
	require.NoError(t, h.HandleUpdate(ctx, photo("YQ==", "")))

	assets := store.GetOrCreate(sessionKey(10, 20)).Studio.Registry().Snapshot()
	assert.True(t, assets.HasFullOutfit())
	assert.False(t, assets.HasSmall())
}

func TestPhotoRejectedWhenOutfitPresent(t *testing.T) {
	h, tg, store := newTestHandler()
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, command("/outfit")))
	require.NoError(t, h.HandleUpdate(ctx, photo("YQ==", "")))
	require.NoError(t, h.HandleUpdate(ctx, photo("Yg==", "")))

	assets := store.GetOrCreate(sessionKey(10, 20)).Studio.Registry().Snapshot()
	assert.False(t, assets.HasSmall())
	assert.Contains(t, tg.lastText(), "nonaktif")
}

func TestAlbumOverflowIsReported(t *testing.T) {
	h, tg, store := newTestHandler()

	ids := make([]string, mockup.MaxSlots)
	for i := range ids {
		ids[i] = fmt.Sprintf("id%d", i)
	}
	h.HandleAlbum(context.Background(), mediagroup.Album{ChatID: 10, UserID: 20, FileIDs: ids, Dropped: 2})

	assets := store.GetOrCreate(sessionKey(10, 20)).Studio.Registry().Snapshot()
	assert.Len(t, assets.Filled(), mockup.MaxSlots)
	assert.Contains(t, tg.lastText(), "2 foto dilewati")
}

func TestGenerateWithoutPhotos(t *testing.T) {
	h, tg, _ := newTestHandler()

	require.NoError(t, h.HandleUpdate(context.Background(), command("/generate")))
	assert.Equal(t, "❌ "+mockup.MessageNoImages, tg.lastText())
}

func TestGenerateDeliversEverySlot(t *testing.T) {
	h, tg, _ := newTestHandler()
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo("YQ==", "")))
	require.NoError(t, h.HandleUpdate(ctx, command("/generate")))

	require.Eventually(t, func() bool { return tg.photoCount() == len(mockup.ResultSlots) }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return tg.sent("🎉 Semua mockup siap.") }, 2*time.Second, 5*time.Millisecond)

	tg.mu.Lock()
	defer tg.mu.Unlock()
	for _, p := range tg.photos {
		if p.slot.IsModel() {
			assert.Contains(t, p.caption, "camera orbits slowly")
		} else {
			assert.Equal(t, "Flat lay", p.caption)
		}
	}
}

func TestDownloadCommand(t *testing.T) {
	h, tg, _ := newTestHandler()
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, command("/download")))
	assert.Contains(t, tg.lastText(), "Hasil belum lengkap")
	require.NoError(t, h.HandleUpdate(ctx, command("/download model2")))
	assert.Equal(t, "❌ Model 2 belum punya gambar.", tg.lastText())

	require.NoError(t, h.HandleUpdate(ctx, photo("YQ==", "")))
	require.NoError(t, h.HandleUpdate(ctx, command("/generate")))
	require.Eventually(t, func() bool { return tg.sent("🎉 Semua mockup siap.") }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.HandleUpdate(ctx, command("/download model2")))
	require.NoError(t, h.HandleUpdate(ctx, command("/download")))
	require.NoError(t, h.HandleUpdate(ctx, command("/download model9")))
	assert.Contains(t, tg.lastText(), "Slot tidak dikenal")

	tg.mu.Lock()
	defer tg.mu.Unlock()
	want := append([]mockup.SlotID{mockup.SlotModel2}, mockup.ResultSlots...)
	assert.Equal(t, want, tg.documents)
}

func TestOptionCommands(t *testing.T) {
	h, tg, store := newTestHandler()
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, command("/gender wanita")))
	require.NoError(t, h.HandleUpdate(ctx, command("/age 31")))
	require.NoError(t, h.HandleUpdate(ctx, command("/pose walking")))
	require.NoError(t, h.HandleUpdate(ctx, command("/watermark on")))

	require.NoError(t, h.HandleUpdate(ctx, command("/height abc")))
	assert.Contains(t, tg.lastText(), "angka")

	require.NoError(t, h.HandleUpdate(ctx, command("/note")))
	require.NoError(t, h.HandleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "tampilkan logo di dada",
		Chat: &tgbotapi.Chat{ID: 10},
		From: &tgbotapi.User{ID: 20},
	}}))

	opts := store.GetOrCreate(sessionKey(10, 20)).Studio.Options()
	assert.Equal(t, mockup.GenderFemale, opts.Gender)
	assert.Equal(t, "31", opts.Age)
	assert.Equal(t, "walking", opts.Pose)
	assert.True(t, opts.Watermark)
	assert.Equal(t, "tampilkan logo di dada", opts.Instructions)
}

func TestPoseWithoutArgumentListsChoices(t *testing.T) {
	h, tg, _ := newTestHandler()

	require.NoError(t, h.HandleUpdate(context.Background(), command("/pose")))
	for _, p := range mockup.Poses() {
		assert.Contains(t, tg.lastText(), p.Key)
	}
}

func TestRegenUnknownSlot(t *testing.T) {
	h, tg, _ := newTestHandler()

	require.NoError(t, h.HandleUpdate(context.Background(), command("/regen model7")))
	assert.Contains(t, tg.lastText(), "Slot tidak dikenal")
}
