package bus

import (
	"fmt"

	"github.com/aretw0/tourguide/pkg/domain"
)

// Context names an execution context.
type Context string

const (
	Background Context = "background"
	Content    Context = "content"
	UI         Context = "ui"
)

// Address identifies a context of one tab.
type Address struct {
	Context Context `json:"context"`
	Tab     string  `json:"tab"`
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%s", a.Tab, a.Context)
}

// BackgroundOf returns the background address of a tab.
func BackgroundOf(tab string) Address { return Address{Context: Background, Tab: tab} }

// ContentOf returns the content address of a tab.
func ContentOf(tab string) Address { return Address{Context: Content, Tab: tab} }

// UIOf returns the UI address of a tab.
func UIOf(tab string) Address { return Address{Context: UI, Tab: tab} }

// Action is the tag of a message.
type Action string

const (
	ActionViewportDimensions Action = "viewportDimensions"
	ActionInitiateTutorial   Action = "initiateTutorial"
	ActionStepCompleted      Action = "stepCompleted"
	ActionDisplayStep        Action = "displayStep"
	ActionFindElementInDOM   Action = "findElementInDOM"
	ActionFindElementResult  Action = "findElementResult"
	ActionEndTutorial        Action = "endTutorial"
	ActionPageNavigated      Action = "pageNavigated"
	ActionPageReady          Action = "pageReady"
	ActionCancelTutorial     Action = "cancelTutorial"
	ActionGetStatus          Action = "getStatus"
	ActionTutorialStatus     Action = "tutorialStatus"
	ActionError              Action = "error"
)

// Message is a tagged record carried by the bus.
type Message interface {
	Action() Action
}

// ViewportDimensions is sent by the content context once per page load.
type ViewportDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// InitiateTutorial asks the background context to start a tutorial.
type InitiateTutorial struct {
	Steps []domain.Step `json:"steps"`
}

// StepCompleted reports that the advance control of step Index was activated.
type StepCompleted struct {
	Index int `json:"index"`
}

// DisplayStep asks the content context to render a resolved step.
type DisplayStep struct {
	Step domain.Step `json:"step"`
}

// FindElementInDOM asks the content context whether the step target is in the live DOM.
type FindElementInDOM struct {
	Step domain.Step `json:"step"`
}

// FindElementResult answers FindElementInDOM. Region is document-absolute.
type FindElementResult struct {
	Found  bool           `json:"found"`
	Region *domain.Region `json:"region,omitempty"`
}

// EndTutorial tells the content context to remove any overlay.
type EndTutorial struct{}

// PageNavigated is sent when the main frame starts loading a new document.
type PageNavigated struct {
	URL string `json:"url,omitempty"`
}

// PageReady is sent when a new document finished loading and the display logic is in place.
type PageReady struct {
	URL string `json:"url,omitempty"`
}

// CancelTutorial discards the running tutorial.
type CancelTutorial struct{}

// GetStatus asks the background context for a TutorialStatus.
type GetStatus struct{}

// TutorialStatus describes the orchestration state of a tab.
type TutorialStatus struct {
	State        domain.Status `json:"state"`
	CurrentIndex int           `json:"currentIndex"`
	Total        int           `json:"total"`
	Current      *domain.Step  `json:"current,omitempty"`
}

// ErrorReply carries a handler failure back to a requester.
type ErrorReply struct {
	Error string `json:"error"`
}

func (ViewportDimensions) Action() Action { return ActionViewportDimensions }
func (InitiateTutorial) Action() Action   { return ActionInitiateTutorial }
func (StepCompleted) Action() Action      { return ActionStepCompleted }
func (DisplayStep) Action() Action        { return ActionDisplayStep }
func (FindElementInDOM) Action() Action   { return ActionFindElementInDOM }
func (FindElementResult) Action() Action  { return ActionFindElementResult }
func (EndTutorial) Action() Action        { return ActionEndTutorial }
func (PageNavigated) Action() Action      { return ActionPageNavigated }
func (PageReady) Action() Action          { return ActionPageReady }
func (CancelTutorial) Action() Action     { return ActionCancelTutorial }
func (GetStatus) Action() Action          { return ActionGetStatus }
func (TutorialStatus) Action() Action     { return ActionTutorialStatus }
func (ErrorReply) Action() Action         { return ActionError }

// Envelope is a message in transit.
type Envelope struct {
	From    Address
	To      Address
	Message Message
}
