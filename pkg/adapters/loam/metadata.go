package loam

// TutorialMetadata is the frontmatter of an authored tutorial.
type TutorialMetadata struct {
	ID       string         `json:"id" mapstructure:"id"`
	Title    string         `json:"title" mapstructure:"title"`
	Software string         `json:"software" mapstructure:"software"`
	Action   string         `json:"action" mapstructure:"action"`
	Steps    []StepMetadata `json:"steps" mapstructure:"steps"`
}

// StepMetadata uses the field names of the extraction service so tutorials can be
// pasted from its replies.
type StepMetadata struct {
	Step       string `json:"step" mapstructure:"step"`
	WebElement string `json:"web_element" mapstructure:"web_element"`
	Action     string `json:"action" mapstructure:"action"`
}
