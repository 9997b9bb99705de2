package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mockup-studio/internal/mockup"
	"mockup-studio/internal/session"
)

const helpText = "👗 Mockup Studio\n\n" +
	"Kirim foto produk (maks. 8, boleh album) lalu /generate.\n\n" +
	"Perintah:\n" +
	"/outfit - foto berikutnya jadi outfit lengkap\n" +
	"/face - foto berikutnya jadi wajah referensi\n" +
	"/gender pria|wanita\n" +
	"/age, /height, /weight <angka>\n" +
	"/pose [kunci] - lihat atau pilih pose\n" +
	"/bg [kunci] - lihat atau pilih latar\n" +
	"/note <teks> - instruksi tambahan\n" +
	"/watermark on|off\n" +
	"/prompt - lihat prompt\n" +
	"/status - ringkasan sesi\n" +
	"/generate - buat flat lay + 4 foto model\n" +
	"/regen <flatlay|model1..model4> - ulangi satu slot\n" +
	"/download [slot] - kirim hasil sebagai file PNG utuh\n" +
	"/clear - hapus semua foto"

func (h *Handler) handleCommand(chatID int64, sess *session.Session, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText)
	case "outfit":
		if sess.Studio.Registry().Availability().FullOutfitDisabled {
			return h.tg.SendText(chatID, "❌ Sudah ada foto produk satuan. Gunakan /clear dulu.")
		}
		sess.Expect(session.TargetOutfit)
		return h.tg.SendText(chatID, "📷 Kirim foto outfit lengkap.")
	case "face":
		sess.Expect(session.TargetFace)
		return h.tg.SendText(chatID, "📷 Kirim foto wajah referensi.")
	case "clear":
		sess.Expect(session.TargetSlot)
		sess.Studio.Registry().Clear()
		sess.Studio.Notify()
		return h.tg.SendText(chatID, "✅ Semua foto dihapus.")
	case "gender":
		return h.setGender(chatID, sess, args)
	case "age":
		return h.setNumber(chatID, sess, args, "Usia", func(o *mockup.Options, v string) { o.Age = v })
	case "height":
		return h.setNumber(chatID, sess, args, "Tinggi", func(o *mockup.Options, v string) { o.Height = v })
	case "weight":
		return h.setNumber(chatID, sess, args, "Berat", func(o *mockup.Options, v string) { o.Weight = v })
	case "pose":
		return h.setChoice(chatID, sess, args, "Pose", mockup.Poses(), func(o *mockup.Options, v string) { o.Pose = v })
	case "bg":
		return h.setChoice(chatID, sess, args, "Latar", mockup.Backgrounds(), func(o *mockup.Options, v string) { o.Background = v })
	case "note":
		if args == "" {
			sess.Expect(session.TargetOptions)
			return h.tg.SendText(chatID, "📝 Kirim instruksi tambahan. Kirim \"-\" untuk menghapus.")
		}
		return h.setInstructions(chatID, sess, args)
	case "watermark":
		return h.setWatermark(chatID, sess, args)
	case "prompt":
		flatlay, model := sess.Studio.Prompts()
		return h.tg.SendText(chatID, "📄 Flat lay:\n"+flatlay+"\n\n📄 Model:\n"+model)
	case "status":
		return h.tg.SendText(chatID, statusText(sess.Studio.State()))
	case "generate":
		return h.generate(chatID, sess)
	case "regen":
		return h.regenerate(chatID, sess, args)
	case "download":
		return h.download(chatID, sess, args)
	default:
		return h.tg.SendText(chatID, "❌ Perintah tidak dikenal. Ketik /help.")
	}
}

func (h *Handler) generate(chatID int64, sess *session.Session) error {
	ctx, cancel := h.runContext()
	run, err := sess.Studio.Generate(ctx)
	if err != nil {
		cancel()
		return h.tg.SendText(chatID, runErrorText(err))
	}

	h.logger.Info("run started", "session", sess.ID, "slots", len(run.Slots))
	go func() {
		defer cancel()
		h.deliver(ctx, chatID, sess, run)
	}()
	return h.tg.SendText(chatID, "⏳ Membuat mockup, mohon tunggu…")
}

func (h *Handler) regenerate(chatID int64, sess *session.Session, args string) error {
	slot, err := mockup.ParseSlot(args)
	if err != nil {
		return h.tg.SendText(chatID, "❌ Slot tidak dikenal. Pilih: flatlay, model1, model2, model3, model4.")
	}

	ctx, cancel := h.runContext()
	run, err := sess.Studio.Regenerate(ctx, slot)
	if err != nil {
		cancel()
		return h.tg.SendText(chatID, runErrorText(err))
	}

	go func() {
		defer cancel()
		h.deliver(ctx, chatID, sess, run)
	}()
	return h.tg.SendText(chatID, fmt.Sprintf("🔄 Mengulang %s…", slotTitle(slot)))
}

// download sends results as documents so Telegram keeps the original PNG.
// Without an argument every slot is sent, and only once all of them succeeded.
func (h *Handler) download(chatID int64, sess *session.Session, args string) error {
	snap := sess.Studio.Tracker().Snapshot()

	if args == "" {
		if !snap.DownloadReady {
			return h.tg.SendText(chatID, "⏳ Hasil belum lengkap. Tunggu semua slot selesai atau pilih satu slot.")
		}
		for _, slot := range snap.Slots {
			if !slot.HasImage() {
				continue
			}
			if err := h.tg.SendDocument(chatID, slot.ID, slot.Image); err != nil {
				return fmt.Errorf("send %s: %w", slot.ID, err)
			}
		}
		return nil
	}

	id, err := mockup.ParseSlot(args)
	if err != nil {
		return h.tg.SendText(chatID, "❌ Slot tidak dikenal. Pilih: flatlay, model1, model2, model3, model4.")
	}
	slot, ok := sess.Studio.Tracker().Slot(id)
	if !ok || !slot.HasImage() {
		return h.tg.SendText(chatID, fmt.Sprintf("❌ %s belum punya gambar.", slotTitle(id)))
	}
	return h.tg.SendDocument(chatID, id, slot.Image)
}

func runErrorText(err error) string {
	switch {
	case errors.Is(err, mockup.ErrNoImages):
		return "❌ " + mockup.MessageNoImages
	case errors.Is(err, mockup.ErrBusy):
		return "⏳ Masih memproses, tunggu sampai selesai."
	case errors.Is(err, mockup.ErrNotGenerated):
		return "❌ Jalankan /generate dulu."
	default:
		return "❌ " + err.Error()
	}
}

func (h *Handler) setGender(chatID int64, sess *session.Session, args string) error {
	var gender string
	switch strings.ToLower(args) {
	case "pria", "laki-laki", "male":
		gender = mockup.GenderMale
	case "wanita", "perempuan", "female":
		gender = mockup.GenderFemale
	default:
		return h.tg.SendText(chatID, "Gunakan: /gender pria atau /gender wanita")
	}
	return h.updateOptions(chatID, sess, "Gender", gender, func(o *mockup.Options) { o.Gender = gender })
}

func (h *Handler) setNumber(chatID int64, sess *session.Session, args, label string, set func(*mockup.Options, string)) error {
	n, err := strconv.Atoi(args)
	if err != nil || n <= 0 {
		return h.tg.SendText(chatID, fmt.Sprintf("❌ %s harus berupa angka positif.", label))
	}
	value := strconv.Itoa(n)
	return h.updateOptions(chatID, sess, label, value, func(o *mockup.Options) { set(o, value) })
}

func (h *Handler) setChoice(chatID int64, sess *session.Session, args, label string, choices []mockup.NamedOption, set func(*mockup.Options, string)) error {
	key := strings.ToLower(args)
	for _, c := range choices {
		if c.Key == key {
			return h.updateOptions(chatID, sess, label, c.Name, func(o *mockup.Options) { set(o, c.Key) })
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s tersedia:\n", label)
	for _, c := range choices {
		fmt.Fprintf(&b, "• %s - %s\n", c.Key, c.Name)
	}
	return h.tg.SendText(chatID, strings.TrimRight(b.String(), "\n"))
}

func (h *Handler) setInstructions(chatID int64, sess *session.Session, text string) error {
	if text == "-" {
		text = ""
	}
	shown := text
	if shown == "" {
		shown = "(kosong)"
	}
	return h.updateOptions(chatID, sess, "Instruksi", shown, func(o *mockup.Options) { o.Instructions = text })
}

func (h *Handler) setWatermark(chatID int64, sess *session.Session, args string) error {
	var on bool
	switch strings.ToLower(args) {
	case "on", "ya", "1":
		on = true
	case "off", "tidak", "0":
	case "":
		on = !sess.Studio.Options().Watermark
	default:
		return h.tg.SendText(chatID, "Gunakan: /watermark on atau /watermark off")
	}
	shown := "nonaktif"
	if on {
		shown = "aktif"
	}
	return h.updateOptions(chatID, sess, "Watermark", shown, func(o *mockup.Options) { o.Watermark = on })
}

func (h *Handler) updateOptions(chatID int64, sess *session.Session, label, shown string, fn func(*mockup.Options)) error {
	if _, err := sess.Studio.UpdateOptions(fn); err != nil {
		return h.tg.SendText(chatID, "❌ "+err.Error())
	}
	return h.tg.SendText(chatID, fmt.Sprintf("✅ %s: %s", label, shown))
}

func statusText(st mockup.State) string {
	var b strings.Builder
	switch {
	case st.HasOutfit:
		b.WriteString("👗 Outfit lengkap: ada\n")
	case len(st.Filled) > 0:
		labels := make([]string, 0, len(st.Filled))
		for _, i := range st.Filled {
			labels = append(labels, mockup.SlotLabels[i])
		}
		fmt.Fprintf(&b, "👕 Produk (%d/%d): %s\n", len(st.Filled), mockup.MaxSlots, strings.Join(labels, ", "))
	default:
		b.WriteString("📭 Belum ada foto produk\n")
	}
	if st.HasFace {
		b.WriteString("🙂 Wajah referensi: ada\n")
	}

	o := st.Options
	fmt.Fprintf(&b, "⚙️ %s, %s th, %s cm, %s kg, pose %s, latar %s", o.Gender, o.Age, o.Height, o.Weight, o.Pose, o.Background)
	if o.Watermark {
		b.WriteString(", watermark")
	}
	b.WriteString("\n")

	if st.Generated {
		for _, slot := range st.Slots {
			fmt.Fprintf(&b, "%s: %s\n", slotTitle(slot.ID), slot.State)
		}
	}
	if st.Running && st.Status != "" {
		b.WriteString(st.Status + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
