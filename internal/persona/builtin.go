package persona

// Built-in labels.
const (
	Angry        = "Angry"
	AngryProfane = "Angry and profane"
	Kind         = "Kind"
	Neutral      = "Neutral"
)

// DefaultLabel is active at startup unless configuration says otherwise.
const DefaultLabel = Kind

// BuiltIn returns the built-in personalities in button order.
func BuiltIn() []Persona {
	return []Persona{
		{Label: Angry, Caption: "Angry"},
		{Label: AngryProfane, Caption: "Angry, with swearing"},
		{Label: Kind, Caption: "Kind"},
		{Label: Neutral, Caption: "Neutral"},
	}
}
