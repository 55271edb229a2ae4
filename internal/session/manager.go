// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the state of one open chat log: the resolved
// character roster, the per-session emotional-boosts overlay, the turn
// coordinator, parameter-set selection, and persistence. Every mutating
// command saves the log synchronously before it is considered done.
//
// The manager is the only writer of the chat log. Generation runs in a
// background unit of work against an immutable snapshot taken at turn
// start; its result is applied back on the control thread via CompleteTurn.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jeranaias/sentinel-tui/internal/assembler"
	"github.com/jeranaias/sentinel-tui/internal/backend"
	"github.com/jeranaias/sentinel-tui/internal/config"
	"github.com/jeranaias/sentinel-tui/internal/embedding"
	"github.com/jeranaias/sentinel-tui/internal/memory"
	"github.com/jeranaias/sentinel-tui/internal/model"
	"github.com/jeranaias/sentinel-tui/internal/storage"
	"github.com/jeranaias/sentinel-tui/internal/template"
	"github.com/jeranaias/sentinel-tui/internal/turn"
)

// similarityChunkChars bounds the passages fed to the embedding engine;
// longer entries are split at line and sentence boundaries.
const similarityChunkChars = 256

// Manager holds one open session.
type Manager struct {
	mu sync.Mutex

	cfg   *config.Config
	store *storage.LogStore

	logName       string
	log           *model.ChatLog
	characterPath string

	// Roster: id 1 is the primary, 2..N follow the log's
	// other_participants. Others resolve lazily on first access.
	primary *model.Character
	others  []*model.Character

	// boosts is the mutable per-session overlay consulted ahead of the
	// immutable character definitions.
	boosts map[int]string

	memories []*memory.File

	state      turn.State
	paramIndex int
	dirty      bool

	// generators are cached per model-config name.
	generators map[string]backend.Generator
	similarity *embedding.Engine
}

// NewManager creates a manager over a configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg:        cfg,
		boosts:     make(map[int]string),
		generators: make(map[string]backend.Generator),
		state:      turn.State{Phase: turn.Idle},
		paramIndex: maxInt(0, cfg.ParameterSetIndex(cfg.SelectedParameterSet)),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SetSimilarity wires the optional similarity engine.
func (m *Manager) SetSimilarity(engine *embedding.Engine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.similarity = engine
}

// =============================================================================
// OPEN / CLOSE
// =============================================================================

// OpenNew starts a fresh chat log for the character at characterPath,
// seeded with the character's greeting.
func (m *Manager) OpenNew(characterPath, logName string) error {
	ch, err := config.LoadCharacter(characterPath)
	if err != nil {
		return err
	}

	log := model.NewChatLog(ch.Context)
	if ch.Greeting != "" {
		greeting := template.Render(ch.Greeting, template.Values{
			template.CharacterName: ch.Name,
			template.UserName:      m.cfg.DisplayName,
		})
		log.Append(model.SpeakerPrimary, greeting)
	}

	return m.open(ch, characterPath, log, logName, true)
}

// OpenExisting loads a previously saved chat log.
func (m *Manager) OpenExisting(characterPath, logName string) error {
	ch, err := config.LoadCharacter(characterPath)
	if err != nil {
		return err
	}

	store := storage.NewLogStore(m.cfg.CharacterLogDir(ch.Name))
	log, err := store.Load(logName)
	if err != nil {
		return err
	}
	return m.open(ch, characterPath, log, logName, false)
}

func (m *Manager) open(ch *model.Character, characterPath string, log *model.ChatLog, logName string, persist bool) error {
	memories, err := memory.LoadAll(log.MemoryFiles)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.primary = ch
	m.characterPath = characterPath
	m.log = log
	m.logName = logName
	m.store = storage.NewLogStore(m.cfg.CharacterLogDir(ch.Name))
	m.others = make([]*model.Character, len(log.OtherParticipants))
	m.boosts = make(map[int]string)
	m.memories = memories
	m.state = turn.NewState()
	m.dirty = false

	if persist {
		return m.saveLocked()
	}
	return nil
}

// Log returns the open chat log. The caller must treat it as read-only.
func (m *Manager) Log() *model.ChatLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log
}

// LogName returns the open log's file name.
func (m *Manager) LogName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logName
}

// =============================================================================
// ROSTER
// =============================================================================

// Participant resolves a speaker id to its character, loading other
// participants on first use.
func (m *Manager) Participant(id int) (*model.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.participantLocked(id)
}

func (m *Manager) participantLocked(id int) (*model.Character, error) {
	if id == model.SpeakerPrimary {
		return m.primary, nil
	}
	idx := id - 2
	if idx < 0 || idx >= len(m.others) {
		return nil, fmt.Errorf("participant %d: %w", id, turn.ErrInvalidParticipant)
	}
	if m.others[idx] == nil {
		ch, err := config.LoadCharacter(m.log.OtherParticipants[idx].CharacterFilepath)
		if err != nil {
			return nil, err
		}
		m.others[idx] = ch
	}
	return m.others[idx], nil
}

// ParticipantCount reports the roster size including the primary.
func (m *Manager) ParticipantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.ParticipantCount()
}

// DisplayName resolves a speaker id to the name used in transcripts.
func (m *Manager) DisplayName(id int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.displayNameLocked(id)
}

func (m *Manager) displayNameLocked(id int) string {
	if id == model.SpeakerUser {
		return m.cfg.DisplayName
	}
	ch, err := m.participantLocked(id)
	if err != nil {
		return fmt.Sprintf("#%d", id)
	}
	return ch.Name
}

// allNamesLocked resolves every roster name plus the user, for stop
// sequences.
func (m *Manager) allNamesLocked() []string {
	names := []string{m.cfg.DisplayName}
	for id := 1; id <= m.log.ParticipantCount(); id++ {
		if ch, err := m.participantLocked(id); err == nil {
			names = append(names, ch.Name)
		}
	}
	return names
}

// =============================================================================
// EMOTIONAL BOOSTS OVERLAY
// =============================================================================

// EmotionalBoosts returns the effective boosts value for a participant: the
// session overlay when set, the character definition otherwise.
func (m *Manager) EmotionalBoosts(id int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emotionalBoostsLocked(id)
}

func (m *Manager) emotionalBoostsLocked(id int) (string, error) {
	ch, err := m.participantLocked(id)
	if err != nil {
		return "", err
	}
	if v, ok := m.boosts[id]; ok {
		return v, nil
	}
	return ch.EmotionalBoosts, nil
}

// SetEmotionalBoosts writes the overlay for a participant. The character
// definition on disk is never touched.
func (m *Manager) SetEmotionalBoosts(id int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.participantLocked(id); err != nil {
		return err
	}
	m.boosts[id] = value
	return nil
}

// =============================================================================
// TURN COORDINATION
// =============================================================================

// State returns the current coordinator snapshot.
func (m *Manager) State() turn.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ToggleMultiChat flips the session mode.
func (m *Manager) ToggleMultiChat() turn.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.state.ToggleMultiChat()
	return m.state
}

// UserReply appends the user's entry, persists, and in single-chat mode
// returns the ready work unit for the primary's automatic response. In
// multi-chat mode it returns nil and the caller picks a speaker.
func (m *Manager) UserReply(text string) (*TurnRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Append(model.SpeakerUser, text)
	if err := m.saveLocked(); err != nil {
		return nil, err
	}

	next, generate := m.state.UserReplied()
	if !generate {
		m.state = next
		return nil, nil
	}

	req, err := m.buildTurnLocked(model.SpeakerPrimary, turn.Reply)
	if err != nil {
		return nil, err
	}
	m.state = next
	return req, nil
}

// TargetOfLastEntry returns the speaker id owning the most recent entry.
// Regenerate and Continue retarget to this participant.
func (m *Manager) TargetOfLastEntry() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := m.log.LastEntry()
	if last == nil {
		return 0, false
	}
	return last.SpeakerID, true
}

// TurnRequest is an immutable generation work unit. It carries a snapshot
// of everything assembly needs, so Execute can run in a background
// goroutine while the control thread keeps handling input.
type TurnRequest struct {
	Participant int
	Kind        turn.Kind

	speaker   *model.Character
	boosts    string
	logCopy   *model.ChatLog
	userName  string
	names     map[int]string
	memories  []*memory.File
	memoryPct float64

	generator backend.Generator
	params    backend.Params
	budget    int
	mc        *model.ModelConfig
	stop      []string
	trimNames []string

	similarity *embedding.Engine
	simCount   int
}

// StartTurn transitions the coordinator into Generating and builds the
// work unit for the requested participant and kind. Regenerate assembles
// against the log with the target's pending entry removed; Continue peels
// it into the prompt tail.
func (m *Manager) StartTurn(participant int, kind turn.Kind) (*TurnRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := m.state.RequestGeneration(participant, kind, m.log.ParticipantCount())
	if err != nil {
		return nil, err
	}

	req, err := m.buildTurnLocked(participant, kind)
	if err != nil {
		return nil, err
	}

	m.state = next
	return req, nil
}

// buildTurnLocked assembles the immutable work unit without touching the
// coordinator state. The caller commits the transition only when building
// succeeded.
func (m *Manager) buildTurnLocked(participant int, kind turn.Kind) (*TurnRequest, error) {
	speaker, err := m.participantLocked(participant)
	if err != nil {
		return nil, err
	}

	if kind == turn.Continue {
		// A continue resumes the targeted speaker's latest utterance, so
		// it is only valid while that utterance is still the newest entry.
		last := m.log.LastEntry()
		if last == nil || last.SpeakerID != participant {
			return nil, turn.ErrNoContinuableEntry
		}
	}
	boosts, _ := m.emotionalBoostsLocked(participant)

	mc := m.modelConfigLocked(participant)
	gen, err := m.generatorLocked(mc)
	if err != nil {
		return nil, err
	}

	logCopy := m.log.Duplicate()
	if kind == turn.Regenerate {
		// The replaced entry must not feed its own regeneration.
		if _, idx := logCopy.LastEntryBy(participant); idx >= 0 {
			_ = logCopy.Delete(idx)
		}
	}

	names := make(map[int]string, m.log.ParticipantCount()+1)
	for id := 0; id <= m.log.ParticipantCount(); id++ {
		names[id] = m.displayNameLocked(id)
	}

	set := m.cfg.ParameterSets[m.paramIndex]
	stop := backend.StopSequences(m.allNamesLocked())
	stop = append(stop, set.StopSequences...)

	var trimNames []string
	if m.cfg.StopOnDisplayName {
		trimNames = m.allNamesLocked()
	}

	simCount := 0
	if m.similarity != nil && template.Contains(mc.PromptInstructTemplate, template.SimilarSentences) {
		simCount = mc.SimilarSentenceCount
		if simCount == 0 {
			simCount = model.DefaultSimilarSentences
		}
	}

	req := &TurnRequest{
		Participant: participant,
		Kind:        kind,
		speaker:     speaker,
		boosts:      boosts,
		logCopy:     logCopy,
		userName:    m.cfg.DisplayName,
		names:       names,
		memories:    m.memories,
		memoryPct:   m.cfg.MemoryMaxContextPercentage,
		generator:   gen,
		params:      backend.ParamsFrom(set, mc, m.cfg.MaximumNewTokens),
		budget:      gen.EstimateBudget(mc.ContextSize, m.cfg.Ratio(mc), m.cfg.MaximumNewTokens),
		mc:          mc,
		stop:        stop,
		trimNames:   trimNames,
		similarity:  m.similarity,
		simCount:    simCount,
	}
	return req, nil
}

// Execute assembles the prompt and calls the backend. It runs outside the
// manager lock; the request owns private copies of everything it reads.
func (r *TurnRequest) Execute(ctx context.Context) (string, error) {
	req := assembler.Request{
		Template:         r.mc.PromptInstructTemplate,
		Speaker:          r.speaker,
		EmotionalBoosts:  r.boosts,
		Log:              r.logCopy,
		UserName:         r.userName,
		SpeakerName:      func(id int) string { return r.names[id] },
		MemoryFiles:      r.memories,
		MemoryMaxPercent: r.memoryPct,
		Budget:           r.budget,
		Continue:         r.Kind == turn.Continue,
	}

	if r.simCount > 0 {
		req.SimilarSentences = r.fetchSimilar(ctx)
	} else if template.Contains(r.mc.PromptInstructTemplate, template.SimilarSentences) {
		// Placeholder present but capability off: substitute emptiness.
		req.SimilarSentences = []string{}
	}

	res := assembler.Assemble(req)

	text, err := r.generator.Generate(ctx, res.Prompt, r.params, r.stop)
	if err != nil {
		return "", err
	}
	if len(r.trimNames) > 0 {
		text = backend.TrimAtNames(text, r.trimNames)
	}
	return text, nil
}

// fetchSimilar ranks older history passages against the most recent entry.
// Failures degrade to no passages; similarity is an optional garnish, not
// a turn-blocking dependency.
func (r *TurnRequest) fetchSimilar(ctx context.Context) []string {
	entries := r.logCopy.Entries
	if r.Kind == turn.Continue && len(entries) > 0 {
		entries = entries[:len(entries)-1]
	}
	if len(entries) < 2 {
		return []string{}
	}

	// Long entries are chunked so ranking works on passages, not whole
	// monologues; each chunk competes on its own.
	query := entries[len(entries)-1].Text
	corpus := make([]string, 0, len(entries)-1)
	for _, e := range entries[:len(entries)-1] {
		corpus = append(corpus, embedding.ChunkText(e.Text, similarityChunkChars)...)
	}

	scored, err := r.similarity.MostSimilar(ctx, query, corpus, r.simCount)
	if err != nil {
		return []string{}
	}
	out := make([]string, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.Text)
	}
	return out
}

// CompleteTurn applies a successful generation to the log per the turn
// kind, persists, and returns the coordinator to AwaitingInput.
func (m *Manager) CompleteTurn(req *TurnRequest, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch req.Kind {
	case turn.Reply, turn.AdditionalGeneration:
		m.log.Append(req.Participant, strings.TrimSpace(text))
	case turn.Regenerate:
		if _, idx := m.log.LastEntryBy(req.Participant); idx >= 0 {
			if err := m.log.Edit(idx, strings.TrimSpace(text)); err != nil {
				return err
			}
		} else {
			m.log.Append(req.Participant, strings.TrimSpace(text))
		}
	case turn.Continue:
		if _, idx := m.log.LastEntryBy(req.Participant); idx >= 0 {
			if err := m.log.AppendToEntry(idx, text); err != nil {
				return err
			}
		} else {
			m.log.Append(req.Participant, strings.TrimSpace(text))
		}
	}

	m.state = m.state.GenerationComplete()
	return m.saveLocked()
}

// FailTurn returns the coordinator to AwaitingInput without touching the
// log.
func (m *Manager) FailTurn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.state.GenerationFailed()
}

// =============================================================================
// LOG MUTATIONS
// =============================================================================

// EditEntry rewrites an entry and persists.
func (m *Manager) EditEntry(index int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.log.Edit(index, text); err != nil {
		return err
	}
	return m.saveLocked()
}

// DeleteEntry removes an entry and persists.
func (m *Manager) DeleteEntry(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.log.Delete(index); err != nil {
		return err
	}
	return m.saveLocked()
}

// SetCurrentContext replaces the log's mutable context and persists.
func (m *Manager) SetCurrentContext(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.CurrentContext = text
	return m.saveLocked()
}

// SetUserDescription replaces the user description and persists.
func (m *Manager) SetUserDescription(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.UserDescription = text
	return m.saveLocked()
}

// DuplicateLog deep-copies the open log under a new name and persists the
// copy. The open log is unaffected.
func (m *Manager) DuplicateLog(newName string) (*model.ChatLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dup := m.log.Duplicate()
	if err := m.store.Save(newName, dup); err != nil {
		return nil, err
	}
	return dup, nil
}

// ExportDataset writes the primary character's input/output pairs.
func (m *Manager) ExportDataset(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return storage.ExportDataset(path, m.log, model.SpeakerPrimary)
}

// ImportPlaintext replaces the open log's entries with a parsed plain-text
// transcript and persists.
func (m *Manager) ImportPlaintext(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	speakers := []storage.SpeakerName{{Name: m.cfg.DisplayName, ID: model.SpeakerUser}}
	for id := 1; id <= m.log.ParticipantCount(); id++ {
		if ch, err := m.participantLocked(id); err == nil {
			speakers = append(speakers, storage.SpeakerName{Name: ch.Name, ID: id})
		}
	}

	entries, err := storage.ImportPlaintext(path, speakers)
	if err != nil {
		return err
	}
	m.log.Entries = entries
	return m.saveLocked()
}

// =============================================================================
// PARAMETER SETS
// =============================================================================

// CycleParameterSet moves the selection by delta (wrapping) and returns the
// newly active set's name.
func (m *Manager) CycleParameterSet(delta int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.cfg.ParameterSets)
	m.paramIndex = ((m.paramIndex+delta)%n + n) % n
	return m.cfg.ParameterSets[m.paramIndex].Name
}

// ActiveParameterSet returns the selected sampler configuration.
func (m *Manager) ActiveParameterSet() model.ParameterSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.ParameterSets[m.paramIndex]
}

// =============================================================================
// BACKENDS
// =============================================================================

// modelConfigLocked picks the model config for a participant: its
// ParticipantRef override, else the session default.
func (m *Manager) modelConfigLocked(participant int) *model.ModelConfig {
	if participant >= 2 {
		ref := m.log.OtherParticipants[participant-2]
		if ref.ModelConfigName != "" {
			if mc := m.cfg.ModelByName(ref.ModelConfigName); mc != nil {
				return mc
			}
		}
	}
	return m.cfg.ModelByName(m.cfg.DefaultModel)
}

// generatorLocked returns the cached backend for a model config,
// constructing the right transport on first use.
func (m *Manager) generatorLocked(mc *model.ModelConfig) (backend.Generator, error) {
	if gen, ok := m.generators[mc.Name]; ok {
		return gen, nil
	}

	var gen backend.Generator
	if mc.Remote() {
		gen = backend.NewRemoteClient(mc.Endpoint)
	} else {
		gen = backend.NewLocalRuntime(backend.LocalConfig{
			ModelPath: mc.ModelPath,
			GPULayers: mc.GPULayers,
			AutoStart: true,
		})
	}
	m.generators[mc.Name] = gen
	return gen, nil
}

// SetGenerator overrides the backend for a model-config name.
func (m *Manager) SetGenerator(name string, gen backend.Generator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generators[name] = gen
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Save persists the open log.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := m.store.Save(m.logName, m.log); err != nil {
		// Kept but flagged unsaved; the next save retries.
		m.dirty = true
		return err
	}
	m.dirty = false
	return nil
}

// Dirty reports whether the in-memory log has unsaved changes.
func (m *Manager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// MemoryFiles returns the loaded memory tables.
func (m *Manager) MemoryFiles() []*memory.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memories
}

// ReloadMemories re-reads the log's memory files, for live reload when a
// watcher reports a change.
func (m *Manager) ReloadMemories() error {
	m.mu.Lock()
	paths := m.log.MemoryFiles
	m.mu.Unlock()

	memories, err := memory.LoadAll(paths)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.memories = memories
	m.mu.Unlock()
	return nil
}

// ReloadCharacters re-reads the primary character definition and drops the
// lazily-resolved roster cache, so edited character files take effect on
// the next turn. The emotional-boosts overlay is kept.
func (m *Manager) ReloadCharacters() error {
	m.mu.Lock()
	path := m.characterPath
	m.mu.Unlock()

	ch, err := config.LoadCharacter(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.primary = ch
	for i := range m.others {
		m.others[i] = nil
	}
	m.mu.Unlock()
	return nil
}

// LogBaseName strips a path down to the log name used by the store.
func LogBaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
