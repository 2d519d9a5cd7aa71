package annotation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrSessionClosed    = errors.New("annotation: session is closed")
	ErrPendingOperation = errors.New("annotation: a pending operation must be confirmed or canceled first")
	ErrNoPendingLine    = errors.New("annotation: no line waiting for confirmation")
	ErrNoPendingText    = errors.New("annotation: no text placement pending")
	ErrInvalidTool      = errors.New("annotation: invalid tool")
)

// Tool is the active drawing tool.
type Tool string

const (
	ToolLine Tool = "line"
	ToolText Tool = "text"
)

// State is the interaction state of a Session.
type State string

const (
	StateIdle        State = "idle"
	StateDrawing     State = "drawing"
	StatePendingLine State = "pending_line"
	StatePendingText State = "pending_text"
	StateClosed      State = "closed"
)

// Key is a keyboard key the editor reacts to.
type Key string

const (
	KeyEnter  Key = "Enter"
	KeyEscape Key = "Escape"
)

// Segment is the ephemeral dashed preview shown while a line is drawn.
type Segment struct {
	From  Point `json:"from"`
	To    Point `json:"to"`
	Color Color `json:"color"`
}

// SaveFunc persists the complete final list and the canvas it was drawn on.
// A returned error aborts the save and leaves the session open. It runs with
// the session locked and must not call back into it.
type SaveFunc func(annotations []Annotation, canvas Size) error

// CloseFunc is the terminal event of every session.
type CloseFunc func()

// Option configures a Session.
type Option func(*Session)

// WithIDGenerator replaces the uuid generator used for new annotations.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithoutConfirmation appends lines as soon as the pointer is released, with
// the rounded pixel length as value and no label.
func WithoutConfirmation() Option {
	return func(s *Session) { s.confirmLines = false }
}

// WithCanvasSize sets the display size annotations are drawn in.
func WithCanvasSize(size Size) Option {
	return func(s *Session) {
		if !size.Empty() {
			s.canvas = size
		}
	}
}

// Session is one editing session over a single image's annotations. It owns a
// working copy of the list; the caller's list is only replaced through the
// save callback. Methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	imageURL string
	canvas   Size
	tool     Tool
	color    Color
	state    State

	start  Point
	cursor Point
	draft  *Annotation

	textAt    Point
	textInput string

	list List

	onSave       SaveFunc
	onClose      CloseFunc
	newID        func() string
	confirmLines bool
}

// Open starts a session. initial is copied; onSave and onClose may be nil.
func Open(imageURL string, initial []Annotation, onSave SaveFunc, onClose CloseFunc, opts ...Option) *Session {
	s := &Session{
		imageURL:     imageURL,
		canvas:       DefaultCanvas,
		tool:         ToolLine,
		color:        DefaultColor,
		state:        StateIdle,
		list:         NewList(initial),
		onSave:       onSave,
		onClose:      onClose,
		newID:        uuid.NewString,
		confirmLines: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ImageURL() string { return s.imageURL }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Canvas() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas
}

// Annotations returns a copy of the working list.
func (s *Session) Annotations() []Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Slice()
}

// Resize changes the canvas size. Stored coordinates are rescaled so they
// stay attached to the same spot of the image.
func (s *Session) Resize(size Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if size.Empty() || size == s.canvas {
		return nil
	}
	s.list = List(Rescale(s.list, s.canvas, size))
	s.canvas = size
	return nil
}

func (s *Session) SelectTool(t Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if t != ToolLine && t != ToolText {
		return fmt.Errorf("%w: %q", ErrInvalidTool, t)
	}
	s.tool = t
	return nil
}

func (s *Session) SelectColor(c Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if !c.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidColor, c)
	}
	s.color = c
	return nil
}

func (s *Session) pending() bool {
	return s.state == StatePendingLine || s.state == StatePendingText
}

// PointerDown starts a line or places pending text depending on the tool.
// It returns ErrPendingOperation, leaving the state untouched, while a
// confirmation is open.
func (s *Session) PointerDown(p Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if err := checkPoint(p); err != nil {
		return err
	}
	if s.pending() {
		return ErrPendingOperation
	}
	switch s.tool {
	case ToolText:
		s.textAt = p
		s.textInput = ""
		s.state = StatePendingText
	default:
		s.start = p
		s.cursor = p
		s.state = StateDrawing
	}
	return nil
}

// PointerMove only updates the live preview; the list is never touched.
func (s *Session) PointerMove(p Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if err := checkPoint(p); err != nil {
		return err
	}
	if s.state == StateDrawing {
		s.cursor = p
	}
	return nil
}

// PointerUp ends a line draw. The draft waits for ConfirmLine unless the
// session was opened WithoutConfirmation.
func (s *Session) PointerUp(p Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if err := checkPoint(p); err != nil {
		return err
	}
	if s.state != StateDrawing {
		return nil
	}
	start := s.start
	s.start, s.cursor = Point{}, Point{}

	if !s.confirmLines {
		length := strconv.Itoa(int(math.Round(start.Distance(p))))
		s.list = s.list.Append(NewLine(s.newID(), start, p, s.color, LineInput{Value: length}))
		s.state = StateIdle
		return nil
	}

	draft := NewLine(s.newID(), start, p, s.color, LineInput{})
	s.draft = &draft
	s.state = StatePendingLine
	return nil
}

// Draft returns the line waiting for confirmation, if any.
func (s *Session) Draft() (Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return Annotation{}, false
	}
	return s.draft.Clone(), true
}

// Preview returns the dashed segment to overlay while a line is drawn.
func (s *Session) Preview() *Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDrawing {
		return nil
	}
	return &Segment{From: s.start, To: s.cursor, Color: s.color}
}

// ConfirmLine appends the pending draft with the given label, value and unit.
// Blank label and value are stored as absent.
func (s *Session) ConfirmLine(in LineInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.state != StatePendingLine || s.draft == nil {
		return ErrNoPendingLine
	}
	if in.Unit != "" && !in.Unit.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidUnit, in.Unit)
	}
	line := NewLine(s.draft.ID, s.draft.Anchor, *s.draft.Terminus, s.draft.Color, in)
	s.list = s.list.Append(line)
	s.draft = nil
	s.state = StateIdle
	return nil
}

func (s *Session) CancelLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLineLocked()
}

func (s *Session) cancelLineLocked() error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.state != StatePendingLine {
		return ErrNoPendingLine
	}
	s.draft = nil
	s.state = StateIdle
	return nil
}

// SetText replaces the buffered input of a pending text placement.
func (s *Session) SetText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.state != StatePendingText {
		return ErrNoPendingText
	}
	s.textInput = text
	return nil
}

// PendingText returns the placement point and buffered input of a pending
// text annotation.
func (s *Session) PendingText() (Point, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePendingText {
		return Point{}, "", false
	}
	return s.textAt, s.textInput, true
}

// ConfirmText appends a text annotation from the buffered input. Blank input
// returns ErrEmptyText and keeps the placement open.
func (s *Session) ConfirmText() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmTextLocked()
}

func (s *Session) confirmTextLocked() error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.state != StatePendingText {
		return ErrNoPendingText
	}
	a, err := NewText(s.newID(), s.textAt, s.color, s.textInput)
	if err != nil {
		return err
	}
	s.list = s.list.Append(a)
	s.textAt, s.textInput = Point{}, ""
	s.state = StateIdle
	return nil
}

func (s *Session) CancelText() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelTextLocked()
}

func (s *Session) cancelTextLocked() error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.state != StatePendingText {
		return ErrNoPendingText
	}
	s.textAt, s.textInput = Point{}, ""
	s.state = StateIdle
	return nil
}

// HandleKey maps Enter to confirming pending text and Escape to canceling
// whichever operation is open. Other keys are ignored.
func (s *Session) HandleKey(k Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == StateClosed:
		return ErrSessionClosed
	case k == KeyEnter && s.state == StatePendingText:
		return s.confirmTextLocked()
	case k == KeyEscape && s.state == StatePendingText:
		return s.cancelTextLocked()
	case k == KeyEscape && s.state == StatePendingLine:
		return s.cancelLineLocked()
	}
	return nil
}

func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	s.list = s.list.Undo()
	return nil
}

func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	s.list = s.list.Clear()
	return nil
}

// UpdateValue edits the value of a committed line in place.
func (s *Session) UpdateValue(id, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	updated, err := s.list.UpdateValue(id, value)
	if err != nil {
		return err
	}
	s.list = updated
	return nil
}

// Save hands the working list to the save callback and closes the session.
// When the callback fails the error is returned and the session stays open
// with its state untouched.
func (s *Session) Save() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.onSave != nil {
		if err := s.onSave(s.list.Slice(), s.canvas); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	onClose := s.onClose
	s.closeLocked()
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

// Cancel closes the session and discards the working list.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	onClose := s.onClose
	s.closeLocked()
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

func (s *Session) closeLocked() {
	s.state = StateClosed
	s.draft = nil
	s.textAt, s.textInput = Point{}, ""
	s.list = nil
}

// Snapshot is a read-only view of a session for clients that render the
// editor remotely.
type Snapshot struct {
	ImageURL    string       `json:"image_url"`
	Canvas      Size         `json:"canvas"`
	State       State        `json:"state"`
	Tool        Tool         `json:"tool"`
	Color       Color        `json:"color"`
	Annotations []Annotation `json:"annotations"`
	Draft       *Annotation  `json:"draft,omitempty"`
	Preview     *Segment     `json:"preview,omitempty"`
	TextAt      *Point       `json:"text_at,omitempty"`
	TextInput   string       `json:"text_input,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ImageURL:    s.imageURL,
		Canvas:      s.canvas,
		State:       s.state,
		Tool:        s.tool,
		Color:       s.color,
		Annotations: s.list.Slice(),
	}
	if s.draft != nil {
		d := s.draft.Clone()
		snap.Draft = &d
	}
	switch s.state {
	case StateDrawing:
		snap.Preview = &Segment{From: s.start, To: s.cursor, Color: s.color}
	case StatePendingText:
		at := s.textAt
		snap.TextAt = &at
		snap.TextInput = s.textInput
	}
	return snap
}
