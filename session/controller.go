// Package session owns the live music session: the control loop that
// serializes every mutation, the playback state machine, prompt and
// config synchronization, and the bookkeeping for service-rejected
// prompts.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utsavbalhara/promptdj/audio"
	"github.com/utsavbalhara/promptdj/config"
	"github.com/utsavbalhara/promptdj/lyria"
)

// ErrControllerClosed is returned by operations posted after Close.
var ErrControllerClosed = errors.New("session: controller closed")

const commandQueueSize = 256

// PlaybackState is the authoritative playback state. It only changes
// on the control loop.
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StateLoading
	StatePlaying
	StatePaused
)

func (s PlaybackState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Prompt is one weighted steering text. Weight stays within [0,2].
type Prompt struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// Snapshot is a point-in-time copy of everything a UI needs to render.
type Snapshot struct {
	State           string                      `json:"state"`
	Prompts         []Prompt                    `json:"prompts"`
	Config          lyria.MusicGenerationConfig `json:"config"`
	FilteredPrompts []string                    `json:"filteredPrompts"`
}

// transport is the slice of the music session the controller drives.
type transport interface {
	SetWeightedPrompts(prompts []lyria.WeightedPrompt) error
	SetMusicGenerationConfig(cfg lyria.MusicGenerationConfig) error
	Play() error
	Pause() error
	Stop() error
	ResetContext() error
	Close() error
}

type connectFunc func(ctx context.Context, cfg lyria.Config, cb lyria.Callbacks) (transport, error)

type commandKind int

const (
	cmdPlay commandKind = iota
	cmdPause
	cmdStop
	cmdReset
	cmdAddPrompt
	cmdEditPrompt
	cmdRemovePrompt
	cmdSetConfig
	cmdSnapshot
)

type command struct {
	kind   commandKind
	prompt Prompt
	id     string
	config lyria.MusicGenerationConfig
	reply  chan Snapshot
}

type eventKind int

const (
	evtConnected eventKind = iota
	evtSetupComplete
	evtFilteredPrompt
	evtAudioChunk
	evtWarmupDone
	evtError
	evtClosed
)

type sessionEvent struct {
	kind   eventKind
	gen    uint64
	sess   transport
	err    error
	text   string
	reason string
	chunk  []byte
}

// envelope funnels commands and transport events through one queue so
// the loop sees them in a single total order.
type envelope struct {
	cmd *command
	evt *sessionEvent
}

// Controller runs the session. All state below the queue is owned by
// the control loop goroutine and never touched from outside it.
//
// The exported callbacks fire on the loop goroutine; they must hand
// off quickly and must not call back into the controller. Assign them
// before Start.
type Controller struct {
	// OnStateChanged fires on every playback state transition.
	OnStateChanged func(state PlaybackState)
	// OnNotice surfaces human-readable events: rejected prompts, send
	// failures, connection loss.
	OnNotice func(message string)
	// OnSnapshot fires whenever the snapshot contents change.
	OnSnapshot func(snap Snapshot)

	cfg      *config.Config
	registry *Registry

	queue     chan envelope
	closeChan chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned state.
	state      PlaybackState
	prompts    map[string]Prompt
	order      []string
	genConfig  lyria.MusicGenerationConfig
	filtered   *FilteredPrompts
	scheduler  *audio.Scheduler
	sink       audio.Sink
	session    transport
	sessionGen uint64
	warmupGen  uint64
	connecting bool
	promptSync *Throttle
	configSync *Throttle
	fade       time.Duration

	// Seams for tests.
	newSink  audio.Factory
	connect  connectFunc
	now      func() time.Time
	schedule func(d time.Duration, fn func())
}

// NewController wires a controller from configuration. The sink factory
// builds the audio output; it is invoked lazily and again after every
// discard. Call Start before posting operations.
func NewController(cfg *config.Config, sinks audio.Factory, registry *Registry) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:       cfg,
		registry:  registry,
		queue:     make(chan envelope, commandQueueSize),
		closeChan: make(chan struct{}),
		doneChan:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		prompts:   make(map[string]Prompt),
		filtered:  NewFilteredPrompts(),
		fade:      cfg.FadeDuration,
		newSink:   sinks,
		now:       time.Now,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
		connect: func(ctx context.Context, lc lyria.Config, cb lyria.Callbacks) (transport, error) {
			sess, err := lyria.Connect(ctx, lc, cb)
			if err != nil {
				return nil, err
			}
			return sess, nil
		},
	}
	c.promptSync = NewThrottle(cfg.ThrottleInterval, func() time.Time { return c.now() })
	c.configSync = NewThrottle(cfg.ThrottleInterval, func() time.Time { return c.now() })
	c.scheduler = audio.NewScheduler(
		cfg.BufferLatency,
		audio.NewPCM16Decoder(cfg.SampleRate, cfg.Channels),
		func() time.Time { return c.now() },
	)
	return c
}

// Start launches the control loop.
func (c *Controller) Start() {
	log.Printf("🎛️ Session controller started (model: %s)", c.cfg.LyriaModel)
	go c.run()
}

// Close stops the control loop and tears down the session, sink, and
// registry. Safe to call more than once after Start.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeChan)
	})
	<-c.doneChan
	return nil
}

// Play starts playback, dialing the service first when no session is
// live. No-op while already loading or playing.
func (c *Controller) Play() error { return c.post(command{kind: cmdPlay}) }

// Pause pauses playback and drops all pending audio.
func (c *Controller) Pause() error { return c.post(command{kind: cmdPause}) }

// Stop ends playback. The connection stays up for the next Play.
func (c *Controller) Stop() error { return c.post(command{kind: cmdStop}) }

// ResetContext asks the service to forget its generation context and
// clears the rejected-prompt set.
func (c *Controller) ResetContext() error { return c.post(command{kind: cmdReset}) }

// AddPrompt registers a new weighted prompt and schedules a sync. The
// returned prompt carries the assigned ID.
func (c *Controller) AddPrompt(text string, weight float64) (Prompt, error) {
	p := Prompt{ID: uuid.New().String(), Text: text, Weight: clampWeight(weight)}
	if err := c.post(command{kind: cmdAddPrompt, prompt: p}); err != nil {
		return Prompt{}, err
	}
	return p, nil
}

// EditPrompt updates an existing prompt's text and weight.
func (c *Controller) EditPrompt(id, text string, weight float64) error {
	return c.post(command{kind: cmdEditPrompt, prompt: Prompt{ID: id, Text: text, Weight: weight}})
}

// RemovePrompt deletes a prompt and schedules a sync.
func (c *Controller) RemovePrompt(id string) error {
	return c.post(command{kind: cmdRemovePrompt, id: id})
}

// SetConfig replaces the generation config and schedules a sync.
func (c *Controller) SetConfig(cfg lyria.MusicGenerationConfig) error {
	return c.post(command{kind: cmdSetConfig, config: cfg})
}

// Snapshot returns the current state once the loop has drained
// everything posted before this call.
func (c *Controller) Snapshot() (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := c.post(command{kind: cmdSnapshot, reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-c.closeChan:
		return Snapshot{}, ErrControllerClosed
	}
}

func (c *Controller) post(cmd command) error {
	select {
	case <-c.closeChan:
		return ErrControllerClosed
	default:
	}
	select {
	case c.queue <- envelope{cmd: &cmd}:
		return nil
	case <-c.closeChan:
		return ErrControllerClosed
	}
}

func (c *Controller) postEvent(evt sessionEvent) {
	select {
	case c.queue <- envelope{evt: &evt}:
	case <-c.closeChan:
	}
}

func (c *Controller) run() {
	defer close(c.doneChan)
	for {
		select {
		case <-c.closeChan:
			c.teardown()
			return
		case env := <-c.queue:
			if env.cmd != nil {
				c.handleCommand(env.cmd)
			} else if env.evt != nil {
				c.handleEvent(env.evt)
			}
		}
	}
}

func (c *Controller) handleCommand(cmd *command) {
	switch cmd.kind {
	case cmdPlay:
		c.handlePlay()
	case cmdPause:
		c.handlePause()
	case cmdStop:
		c.handleStop()
	case cmdReset:
		c.handleReset()
	case cmdAddPrompt:
		c.handleAddPrompt(cmd.prompt)
	case cmdEditPrompt:
		c.handleEditPrompt(cmd.prompt)
	case cmdRemovePrompt:
		c.handleRemovePrompt(cmd.id)
	case cmdSetConfig:
		c.genConfig = cmd.config
		c.syncConfig()
		c.pushSnapshot()
	case cmdSnapshot:
		cmd.reply <- c.snapshot()
	}
}

func (c *Controller) handleEvent(evt *sessionEvent) {
	switch evt.kind {
	case evtConnected:
		c.handleConnected(evt)
	case evtSetupComplete:
		if evt.gen != c.sessionGen {
			return
		}
		log.Printf("📥 Music session ready")
	case evtFilteredPrompt:
		if evt.gen != c.sessionGen {
			return
		}
		c.filtered.Add(evt.text)
		c.notify(fmt.Sprintf("Prompt rejected by the service: %q (%s)", evt.text, evt.reason))
		c.pushSnapshot()
	case evtAudioChunk:
		c.handleChunk(evt)
	case evtWarmupDone:
		if evt.gen != c.warmupGen {
			return
		}
		if c.state == StateLoading {
			c.setState(StatePlaying)
		}
	case evtError:
		c.handleSessionDown(evt, fmt.Sprintf("Connection error: %v", evt.err))
	case evtClosed:
		c.handleSessionDown(evt, "Connection closed by the service")
	}
}

// handlePlay covers both the cold start (stopped) and the resume
// (paused); both re-enter warm-up through loading.
func (c *Controller) handlePlay() {
	if c.state == StateLoading || c.state == StatePlaying {
		return
	}

	c.scheduler.Reset()
	c.warmupGen++
	if err := c.ensureSink(); err != nil {
		c.notify("Audio output unavailable: " + err.Error())
		return
	}
	c.sink.RampGain(1, c.fade)
	c.setState(StateLoading)

	if c.session == nil {
		if !c.connecting {
			c.dial()
		}
		return
	}
	if err := c.session.Play(); err != nil {
		c.sendFailed("play", err)
	}
}

func (c *Controller) handlePause() {
	if c.state != StatePlaying && c.state != StateLoading {
		return
	}
	if c.session != nil {
		if err := c.session.Pause(); err != nil {
			c.notify("Failed to send pause: " + err.Error())
		}
	}
	c.haltOutput()
	c.setState(StatePaused)
}

func (c *Controller) handleStop() {
	if c.state == StateStopped {
		return
	}
	if c.session != nil {
		if err := c.session.Stop(); err != nil {
			c.notify("Failed to send stop: " + err.Error())
		}
	}
	c.haltOutput()
	c.setState(StateStopped)
}

func (c *Controller) handleReset() {
	c.filtered.Clear()
	if c.session != nil {
		if err := c.session.ResetContext(); err != nil {
			c.notify("Failed to reset context: " + err.Error())
		}
		// Previously rejected texts are sendable again.
		c.syncPrompts()
	}
	c.pushSnapshot()
}

func (c *Controller) handleAddPrompt(p Prompt) {
	p.Weight = clampWeight(p.Weight)
	if _, ok := c.prompts[p.ID]; !ok {
		c.order = append(c.order, p.ID)
	}
	c.prompts[p.ID] = p
	c.syncPrompts()
	c.pushSnapshot()
}

func (c *Controller) handleEditPrompt(p Prompt) {
	if _, ok := c.prompts[p.ID]; !ok {
		log.Printf("⚠️ Edit for unknown prompt %s", p.ID)
		return
	}
	p.Weight = clampWeight(p.Weight)
	c.prompts[p.ID] = p
	c.syncPrompts()
	c.pushSnapshot()
}

func (c *Controller) handleRemovePrompt(id string) {
	if _, ok := c.prompts[id]; !ok {
		return
	}
	delete(c.prompts, id)
	for i, pid := range c.order {
		if pid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.syncPrompts()
	c.pushSnapshot()
}

// dial starts an asynchronous connect. The result comes back through
// the queue so adoption happens on the loop.
func (c *Controller) dial() {
	c.connecting = true
	c.sessionGen++
	gen := c.sessionGen

	lc := lyria.Config{
		Endpoint: c.cfg.LyriaEndpoint,
		APIKey:   c.cfg.GeminiAPIKey,
		Model:    c.cfg.LyriaModel,
	}
	cb := lyria.Callbacks{
		OnSetupComplete: func() {
			c.postEvent(sessionEvent{kind: evtSetupComplete, gen: gen})
		},
		OnFilteredPrompt: func(text, reason string) {
			c.postEvent(sessionEvent{kind: evtFilteredPrompt, gen: gen, text: text, reason: reason})
		},
		OnAudioChunk: func(pcm []byte) {
			c.postEvent(sessionEvent{kind: evtAudioChunk, gen: gen, chunk: pcm})
		},
		OnError: func(err error) {
			c.postEvent(sessionEvent{kind: evtError, gen: gen, err: err})
		},
		OnClose: func() {
			c.postEvent(sessionEvent{kind: evtClosed, gen: gen})
		},
	}

	go func() {
		sess, err := c.connect(c.ctx, lc, cb)
		c.postEvent(sessionEvent{kind: evtConnected, gen: gen, sess: sess, err: err})
	}()
}

func (c *Controller) handleConnected(evt *sessionEvent) {
	if evt.gen != c.sessionGen {
		// A newer dial or an invalidation superseded this one.
		if evt.sess != nil {
			evt.sess.Close()
		}
		return
	}
	c.connecting = false
	if evt.err != nil {
		c.notify(fmt.Sprintf("Connection failed: %v", evt.err))
		c.haltOutput()
		c.setState(StateStopped)
		return
	}
	c.session = evt.sess

	// Push the full local state before asking for audio; throttling
	// does not apply to the connect handshake.
	if err := c.session.SetWeightedPrompts(c.outgoingPrompts()); err != nil {
		c.sendFailed("prompts", err)
		return
	}
	if err := c.session.SetMusicGenerationConfig(c.genConfig); err != nil {
		c.sendFailed("config", err)
		return
	}
	// A stop or pause may have landed while the dial was in flight; in
	// that case keep the connection warm but do not start the stream.
	if c.state != StateLoading {
		return
	}
	if err := c.session.Play(); err != nil {
		c.sendFailed("play", err)
	}
}

// handleChunk runs the placement algorithm for one inbound chunk.
func (c *Controller) handleChunk(evt *sessionEvent) {
	if evt.gen != c.sessionGen {
		return
	}
	// Stale audio for a session nobody is listening to is dropped, not
	// queued.
	if c.state == StatePaused || c.state == StateStopped {
		return
	}
	if c.sink == nil {
		if err := c.ensureSink(); err != nil {
			log.Printf("❌ No audio sink for incoming chunk: %v", err)
			return
		}
	}

	placement, err := c.scheduler.Schedule(evt.chunk, c.sink)
	if err != nil {
		log.Printf("⚠️ Dropped audio chunk: %v", err)
		return
	}
	switch placement.Outcome {
	case audio.WarmupStarted:
		c.armWarmup(placement.StartAt)
	case audio.Underrun:
		log.Printf("⚠️ Audio underrun, rebuffering")
		c.rebuffer()
	}
}

// armWarmup schedules the loading-to-playing flip for the moment the
// first buffered chunk becomes audible. Any pause, stop, or underrun in
// between bumps warmupGen and strands the timer.
func (c *Controller) armWarmup(startAt time.Time) {
	c.warmupGen++
	gen := c.warmupGen
	c.schedule(startAt.Sub(c.now()), func() {
		c.postEvent(sessionEvent{kind: evtWarmupDone, gen: gen})
	})
}

// rebuffer handles an underrun: back to loading, and the sink is
// replaced so buffers committed during the previous warm-up window
// cannot overlap the rebuffered stream.
func (c *Controller) rebuffer() {
	c.setState(StateLoading)
	c.warmupGen++
	if c.sink != nil {
		c.sink.RampGain(0, c.fade)
		c.discardSink()
	}
	if err := c.ensureSink(); err != nil {
		log.Printf("❌ Failed to replace audio sink: %v", err)
	}
}

func (c *Controller) handleSessionDown(evt *sessionEvent, reason string) {
	if evt.gen != c.sessionGen {
		return
	}
	c.invalidateSession()
	c.haltOutput()
	c.setState(StateStopped)
	c.notify(reason + "; press play to reconnect")
}

// invalidateSession abandons the current handle. Bumping sessionGen
// strands every event still in flight from the old read pump.
func (c *Controller) invalidateSession() {
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	c.connecting = false
	c.sessionGen++
}

// haltOutput silences and discards the sink and resets the scheduler,
// so nothing scheduled before this call can audibly play after it.
func (c *Controller) haltOutput() {
	if c.sink != nil {
		c.sink.RampGain(0, c.fade)
		c.discardSink()
	}
	c.scheduler.Reset()
	c.warmupGen++
}

func (c *Controller) ensureSink() error {
	if c.sink != nil {
		return nil
	}
	s, err := c.newSink()
	if err != nil {
		return err
	}
	c.sink = s
	return nil
}

// discardSink detaches the sink immediately and closes it once the
// fade-out has finished playing.
func (c *Controller) discardSink() {
	s := c.sink
	c.sink = nil
	c.schedule(2*c.fade, func() {
		if err := s.Close(); err != nil {
			log.Printf("⚠️ Failed to close audio sink: %v", err)
		}
	})
}

func (c *Controller) syncPrompts() {
	if c.session == nil {
		return
	}
	if !c.promptSync.Allow() {
		return
	}
	if err := c.session.SetWeightedPrompts(c.outgoingPrompts()); err != nil {
		c.sendFailed("prompts", err)
	}
}

func (c *Controller) syncConfig() {
	if c.session == nil {
		return
	}
	if !c.configSync.Allow() {
		return
	}
	if err := c.session.SetMusicGenerationConfig(c.genConfig); err != nil {
		c.sendFailed("config", err)
	}
}

// outgoingPrompts builds the wire payload. Rejected texts and
// zero-weight prompts are elided; sending weight 0 and omitting the
// prompt mean the same thing to the service.
func (c *Controller) outgoingPrompts() []lyria.WeightedPrompt {
	out := make([]lyria.WeightedPrompt, 0, len(c.order))
	for _, id := range c.order {
		p := c.prompts[id]
		if p.Weight == 0 || c.filtered.Contains(p.Text) {
			continue
		}
		out = append(out, lyria.WeightedPrompt{Text: p.Text, Weight: p.Weight})
	}
	return out
}

// sendFailed handles a failed control send: losing the ability to
// steer the session is treated like losing playback control.
func (c *Controller) sendFailed(op string, err error) {
	c.notify(fmt.Sprintf("Failed to send %s: %v", op, err))
	c.haltOutput()
	if c.state != StateStopped {
		c.setState(StatePaused)
	}
}

func (c *Controller) setState(s PlaybackState) {
	if c.state == s {
		return
	}
	c.state = s
	log.Printf("🎚️ Playback state: %s", s)
	c.registry.RecordState(s.String(), len(c.prompts))
	if c.OnStateChanged != nil {
		c.OnStateChanged(s)
	}
	c.pushSnapshot()
}

func (c *Controller) notify(message string) {
	log.Printf("📢 %s", message)
	if c.OnNotice != nil {
		c.OnNotice(message)
	}
}

func (c *Controller) pushSnapshot() {
	if c.OnSnapshot != nil {
		c.OnSnapshot(c.snapshot())
	}
}

func (c *Controller) snapshot() Snapshot {
	prompts := make([]Prompt, 0, len(c.order))
	for _, id := range c.order {
		prompts = append(prompts, c.prompts[id])
	}
	return Snapshot{
		State:           c.state.String(),
		Prompts:         prompts,
		Config:          c.genConfig,
		FilteredPrompts: c.filtered.Texts(),
	}
}

func (c *Controller) teardown() {
	c.cancel()
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	if c.sink != nil {
		c.sink.Close()
		c.sink = nil
	}
	c.registry.Close()
}

func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 2 {
		return 2
	}
	return w
}
