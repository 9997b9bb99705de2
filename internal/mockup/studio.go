package mockup

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// StatusMessages rotate while a run is in flight.
var StatusMessages = []string{"✨ Styling model…", "💡 Finishing lighting…", "🔄 Menata produk…"}

const DefaultStatusInterval = 2 * time.Second

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, images []ImagePart) (ImagePart, error)
}

type TextGenerator interface {
	DescribeImage(ctx context.Context, image ImagePart, instruction string) (string, error)
}

type StudioOptions struct {
	Images         ImageGenerator
	Text           TextGenerator
	Retry          RetryPolicy
	StatusInterval time.Duration
	Brand          string
	Logger         *slog.Logger
	// OnSlotFailure is called once a slot has exhausted its attempts.
	OnSlotFailure func(slot SlotID, err error)
}

// State is what front ends render.
type State struct {
	Snapshot
	Running      bool         `json:"running"`
	Generated    bool         `json:"generated"`
	Availability Availability `json:"availability"`
	Filled       []int        `json:"filled"`
	HasOutfit    bool         `json:"has_outfit"`
	HasFace      bool         `json:"has_face"`
	Options      Options      `json:"options"`
}

// Studio owns one session's inputs, options and results, and runs
// generation batches against them. At most one batch runs at a time.
type Studio struct {
	images        ImageGenerator
	text          TextGenerator
	retry         RetryPolicy
	interval      time.Duration
	brand         string
	logger        *slog.Logger
	onSlotFailure func(SlotID, error)

	registry *Registry
	tracker  *Tracker

	mu        sync.Mutex
	options   Options
	running   bool
	generated bool

	subMu   sync.Mutex
	subs    map[int]chan State
	nextSub int
}

func NewStudio(opts StudioOptions) *Studio {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	interval := opts.StatusInterval
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	brand := strings.TrimSpace(opts.Brand)
	if brand == "" {
		brand = DefaultBrand
	}

	s := &Studio{
		images:        opts.Images,
		text:          opts.Text,
		retry:         opts.Retry.withDefaults(),
		interval:      interval,
		brand:         brand,
		logger:        logger,
		onSlotFailure: opts.OnSlotFailure,
		registry:      NewRegistry(),
		tracker:       NewTracker(),
		options:       DefaultOptions(),
		subs:          make(map[int]chan State),
	}
	s.tracker.OnChange(s.publish)
	return s
}

func (s *Studio) Registry() *Registry { return s.registry }

func (s *Studio) Tracker() *Tracker { return s.tracker }

func (s *Studio) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// SetOptions normalizes and validates opts before storing them.
func (s *Studio) SetOptions(opts Options) (Options, error) {
	opts = opts.Normalize()
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	s.mu.Lock()
	s.options = opts
	s.mu.Unlock()
	s.publish()
	return opts, nil
}

// UpdateOptions applies fn to a copy of the current options and stores the result.
func (s *Studio) UpdateOptions(fn func(o *Options)) (Options, error) {
	opts := s.Options()
	fn(&opts)
	return s.SetOptions(opts)
}

// Prompts renders the flat-lay and model prompts for the current state.
func (s *Studio) Prompts() (flatlay, model string) {
	opts := s.Options()
	assets := s.registry.Snapshot()
	return FlatlayPrompt(opts.Watermark, s.brand), ModelPrompt(opts, assets.HasFace(), s.brand)
}

func (s *Studio) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Studio) State() State {
	assets := s.registry.Snapshot()
	s.mu.Lock()
	running, generated, opts := s.running, s.generated, s.options
	s.mu.Unlock()

	return State{
		Snapshot:     s.tracker.Snapshot(),
		Running:      running,
		Generated:    generated,
		Availability: assets.Availability(),
		Filled:       assets.Filled(),
		HasOutfit:    assets.HasFullOutfit(),
		HasFace:      assets.HasFace(),
		Options:      opts,
	}
}

// Notify pushes the current state to subscribers. Callers use it after
// touching the registry directly.
func (s *Studio) Notify() { s.publish() }

// Subscribe returns a channel that always holds the latest state. The
// returned func unsubscribes and closes the channel.
func (s *Studio) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	s.subMu.Lock()
	ch <- s.State()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Studio) publish() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if len(s.subs) == 0 {
		return
	}

	st := s.State()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

// Run is one dispatched batch.
type Run struct {
	Slots []SlotID
	done  chan struct{}
}

func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until every task of the run settled or ctx is done.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type job struct {
	slot   SlotID
	epoch  uint64
	prompt string
	images []ImagePart
}

// Generate validates the inputs and dispatches the flat-lay task and four
// model tasks. It returns as soon as the tasks are started; ctx bounds the
// tasks themselves.
func (s *Studio) Generate(ctx context.Context) (*Run, error) {
	assets := s.registry.Snapshot()
	if !assets.HasAny() {
		return nil, ErrNoImages
	}
	if err := s.acquire(false); err != nil {
		return nil, err
	}

	opts := s.Options()
	s.tracker.Reset()

	var jobs []job
	if assets.HasFullOutfit() {
		s.tracker.MarkSkipped(SlotFlatlay)
	} else {
		jobs = append(jobs, s.flatlayJob(assets, opts))
	}

	modelPrompt := ModelPrompt(opts, assets.HasFace(), s.brand)
	modelImages := ModelImages(assets)
	for _, id := range ModelSlots {
		jobs = append(jobs, job{slot: id, epoch: s.tracker.Begin(id), prompt: modelPrompt, images: modelImages})
	}

	s.logger.Info("generate started", "jobs", len(jobs), "full_outfit", assets.HasFullOutfit(), "face", assets.HasFace())
	return s.dispatch(ctx, jobs, ResultSlots), nil
}

// Regenerate reruns one slot with freshly captured options and inputs,
// leaving the other slots untouched.
func (s *Studio) Regenerate(ctx context.Context, slot SlotID) (*Run, error) {
	if _, err := ParseSlot(string(slot)); err != nil {
		return nil, err
	}
	assets := s.registry.Snapshot()
	if !assets.HasAny() {
		return nil, ErrNoImages
	}
	if err := s.acquire(true); err != nil {
		return nil, err
	}

	opts := s.Options()
	var jobs []job
	switch {
	case slot == SlotFlatlay && assets.HasFullOutfit():
		s.tracker.MarkSkipped(SlotFlatlay)
	case slot == SlotFlatlay:
		jobs = append(jobs, s.flatlayJob(assets, opts))
	default:
		jobs = append(jobs, job{
			slot:   slot,
			epoch:  s.tracker.Begin(slot),
			prompt: ModelPrompt(opts, assets.HasFace(), s.brand),
			images: ModelImages(assets),
		})
	}

	s.logger.Info("regenerate started", "slot", slot)
	return s.dispatch(ctx, jobs, []SlotID{slot}), nil
}

func (s *Studio) flatlayJob(assets Assets, opts Options) job {
	return job{
		slot:   SlotFlatlay,
		epoch:  s.tracker.Begin(SlotFlatlay),
		prompt: FlatlayPrompt(opts.Watermark, s.brand),
		images: FlatlayImages(assets),
	}
}

func (s *Studio) acquire(requireGenerated bool) error {
	s.mu.Lock()
	if requireGenerated && !s.generated {
		s.mu.Unlock()
		return ErrNotGenerated
	}
	if s.running {
		s.mu.Unlock()
		return ErrBusy
	}
	s.running = true
	s.generated = true
	s.mu.Unlock()

	s.publish()
	return nil
}

func (s *Studio) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.publish()
}

func (s *Studio) dispatch(ctx context.Context, jobs []job, slots []SlotID) *Run {
	run := &Run{Slots: slots, done: make(chan struct{})}
	stopStatus := s.rotateStatus(len(jobs) > 0)

	go func() {
		defer close(run.done)
		defer s.release()
		defer stopStatus()

		var g errgroup.Group
		for _, j := range jobs {
			g.Go(func() error {
				s.runJob(ctx, j)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return run
}

func (s *Studio) runJob(ctx context.Context, j job) {
	logger := s.logger.With("slot", j.slot, "epoch", j.epoch)

	img, err := Retry(ctx, s.retry, func(ctx context.Context, attempt int) (ImagePart, error) {
		img, err := s.images.GenerateImage(ctx, j.prompt, j.images)
		if err != nil {
			logger.Warn("generation attempt failed", "attempt", attempt, "err", err)
		}
		return img, err
	})
	if err != nil {
		logger.Error("slot failed", "err", err)
		if s.tracker.Fail(j.slot, j.epoch, MessageGenerateFailed) && s.onSlotFailure != nil {
			s.onSlotFailure(j.slot, err)
		}
		return
	}

	if !s.tracker.Succeed(j.slot, j.epoch, img) {
		logger.Debug("stale result dropped")
		return
	}
	logger.Info("slot ready")

	if j.slot.IsModel() {
		s.describe(ctx, logger, j, img)
	}
}

// describe derives the video prompt for a finished model image. It is tried
// once and its failure only replaces the text with a placeholder.
func (s *Studio) describe(ctx context.Context, logger *slog.Logger, j job, img ImagePart) {
	vp := VideoPrompt{State: VideoFailed, Text: VideoFailedText}
	if s.text != nil {
		text, err := s.text.DescribeImage(ctx, img, VideoInstruction)
		text = strings.TrimSpace(text)
		switch {
		case err != nil:
			logger.Warn("video prompt failed", "err", err)
		case text == "":
			logger.Warn("video prompt empty")
		default:
			vp = VideoPrompt{State: VideoReady, Text: text}
		}
	}
	s.tracker.SetVideoPrompt(j.slot, j.epoch, vp)
}

func (s *Studio) rotateStatus(active bool) func() {
	if !active {
		return func() {}
	}

	s.tracker.SetStatus(StatusMessages[len(StatusMessages)-1])
	stop := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tracker.SetStatus(StatusMessages[i])
				i = (i + 1) % len(StatusMessages)
			}
		}
	}()

	return func() {
		close(stop)
		<-stopped
		s.tracker.SetStatus("")
	}
}
