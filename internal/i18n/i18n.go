// Package i18n holds the translated user-facing strings. Message keys are
// the English texts; French is the default language of the API.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys.
const (
	CategoryNotValid      = "The category is not valid"
	DispatchInconsistency = "Unexpected value %q for %s in category %q"
	UnknownLookup         = "%s: no %s labelled %q"
	FieldRequired         = "This field is required."
	FieldInvalidType      = "Expected a value of type %s, got %q."
	FieldNotAChoice       = "%q is not a valid choice."
	StationNotInType      = "Station %d is not associated with this contribution type."
	MailSubjectManagers   = "New contribution #%d: %s"
	MailSubjectAuthor     = "Your contribution #%d has been received"
	InvalidGeometry       = "The geometry must be a point."
	InvalidProperties     = "Properties must be a JSON object."
	InvalidDate           = "Expected a date formatted YYYY-MM-DD, got %q."
	InvalidDateTime       = "Expected a date and time, got %q."
)

// Schema titles.
const (
	TitleNameAuthor      = "Name"
	TitleFirstNameAuthor = "First name"
	TitleEmailAuthor     = "Email"
	TitleDateObservation = "Observation's date"
	TitleDescription     = "Description"
	TitleCategory        = "Category"
	TitleType            = "Type"
	TitleNaturePollution = "Nature of pollution"
	TitleSeverity        = "Severity"
	TitleStation         = "Station"
	TitleContributedAt   = "Contribution date"
)

var supported = []language.Tag{language.French, language.English}

var matcher = language.NewMatcher(supported)

func init() {
	fr := language.French
	for key, text := range map[string]string{
		CategoryNotValid:      "La catégorie n'est pas valide",
		DispatchInconsistency: "Valeur inattendue %q pour %s dans la catégorie %q",
		UnknownLookup:         "%s : aucun %s nommé %q",
		FieldRequired:         "Ce champ est obligatoire.",
		FieldInvalidType:      "Une valeur de type %s est attendue, %q reçu.",
		FieldNotAChoice:       "%q n'est pas un choix valide.",
		StationNotInType:      "La station %d n'est pas associée à ce type de contribution.",
		MailSubjectManagers:   "Nouvelle contribution n°%d : %s",
		MailSubjectAuthor:     "Votre contribution n°%d a bien été reçue",
		InvalidGeometry:       "La géométrie doit être un point.",
		InvalidProperties:     "Les propriétés doivent être un objet JSON.",
		InvalidDate:           "Une date au format AAAA-MM-JJ est attendue, %q reçu.",
		InvalidDateTime:       "Une date et une heure sont attendues, %q reçu.",
		TitleNameAuthor:       "Nom",
		TitleFirstNameAuthor:  "Prénom",
		TitleEmailAuthor:      "E-mail",
		TitleDateObservation:  "Date de l'observation",
		TitleCategory:         "Catégorie",
		TitleNaturePollution:  "Nature de la pollution",
		TitleSeverity:         "Gravité",
		TitleContributedAt:    "Date de la contribution",
	} {
		if err := message.SetString(fr, key, text); err != nil {
			panic(err)
		}
	}
}

// Tag returns the supported language closest to lang ("fr", "en-GB", ...),
// French when nothing matches.
func Tag(lang string) language.Tag {
	_, idx, conf := matcher.Match(language.Make(lang))
	if conf == language.No {
		return language.French
	}
	return supported[idx]
}

// Printer returns a message printer for lang.
func Printer(lang string) *message.Printer {
	return message.NewPrinter(Tag(lang))
}

// Sprintf formats the translation of key in lang.
func Sprintf(lang, key string, args ...any) string {
	return Printer(lang).Sprintf(key, args...)
}
