package jpdata

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Source field names used by the Joshua Project API.
const (
	FieldPeopleID           = "PeopleID3"
	FieldCountryCode        = "ROG3"
	FieldLanguageCode       = "ROL3"
	FieldPeopleName         = "PeopNameInCountry"
	FieldPopulation         = "Population"
	FieldLeastReached       = "LeastReached"
	FieldFrontier           = "Frontier"
	FieldJPScale            = "JPScale"
	FieldPrimaryReligion    = "PrimaryReligion"
	FieldPercentEvangelical = "PercentEvangelical"
	FieldPercentAdherents   = "PercentAdherents"
	FieldBibleStatus        = "BibleStatus"
	FieldLatitude           = "Latitude"
	FieldLongitude          = "Longitude"

	FieldCountryName         = "Ctry"
	FieldContinent           = "Continent"
	FieldRegionName          = "RegionName"
	FieldPercentChristianity = "PercentChristianity"
	FieldCntPeoples          = "CntPeoples"
	FieldCntPeoplesLR        = "CntPeoplesLR"
	FieldJPScaleCtry         = "JPScaleCtry"

	FieldLanguageName    = "Language"
	FieldHubCountry      = "HubCountry"
	FieldBibleYear       = "BibleYear"
	FieldNTYear          = "NTYear"
	FieldPortionsYear    = "PortionsYear"
	FieldHasJesusFilm    = "HasJesusFilm"
	FieldAudioRecordings = "AudioRecordings"
	FieldStatus          = "Status"

	FieldTotalID    = "id"
	FieldTotalValue = "Value"
)

// RecordKey identifies a people group in a country. It is unique within the
// people group collection.
type RecordKey struct {
	PeopleID    int64
	CountryCode string
}

// String renders the key as <PeopleID3>-<ROG3>.
func (k RecordKey) String() string {
	return strconv.FormatInt(k.PeopleID, 10) + "-" + k.CountryCode
}

// MarshalText implements encoding.TextMarshaler.
func (k RecordKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It parses the form
// written by MarshalText, which is how column stores keep keys.
func (k *RecordKey) UnmarshalText(text []byte) error {
	s := string(text)
	i := strings.IndexByte(s, '-')
	if i < 1 {
		return errors.Errorf("record key %q is not of the form <id>-<country>", s)
	}
	id, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return errors.Wrapf(err, "record key %q", s)
	}
	k.PeopleID, k.CountryCode = id, s[i+1:]
	return nil
}

// PeopleGroup is one people group in one country. Fields holds the record as
// it came from the source; the rest is a typed view of it.
type PeopleGroup struct {
	PeopleID     int64
	CountryCode  string
	LanguageCode string

	Name               string
	Population         *int64
	LeastReached       *bool
	Frontier           *bool
	JPScale            *int64
	PrimaryReligion    string
	PercentEvangelical *float64
	PercentAdherents   *float64
	BibleStatus        *int64
	Latitude           *float64
	Longitude          *float64

	Fields Fields
}

// Key returns the people group's identity.
func (p *PeopleGroup) Key() RecordKey {
	return RecordKey{PeopleID: p.PeopleID, CountryCode: p.CountryCode}
}

// Country is one row of the countries collection.
type Country struct {
	Code                string
	Name                string
	Continent           string
	Region              string
	PercentChristianity *float64
	PercentEvangelical  *float64
	CntPeoples          *int64
	CntPeoplesLR        *int64
	JPScale             *int64

	Fields Fields
}

// Language is one row of the languages collection.
type Language struct {
	Code            string
	Name            string
	HubCountry      string
	BibleStatus     *int64
	HasJesusFilm    *bool
	AudioRecordings *bool
	Status          string

	Fields Fields
}

// Totals holds global summary statistics keyed by statistic id.
type Totals map[string]interface{}

func newPeopleGroup(f Fields) *PeopleGroup {
	p := &PeopleGroup{
		CountryCode:        strings.TrimSpace(f.Str(FieldCountryCode)),
		LanguageCode:       strings.TrimSpace(f.Str(FieldLanguageCode)),
		Name:               f.Str(FieldPeopleName),
		Population:         f.Int(FieldPopulation),
		LeastReached:       f.Flag(FieldLeastReached),
		Frontier:           f.Flag(FieldFrontier),
		JPScale:            f.Int(FieldJPScale),
		PrimaryReligion:    f.Str(FieldPrimaryReligion),
		PercentEvangelical: f.Float(FieldPercentEvangelical),
		PercentAdherents:   f.Float(FieldPercentAdherents),
		BibleStatus:        f.Int(FieldBibleStatus),
		Latitude:           f.Float(FieldLatitude),
		Longitude:          f.Float(FieldLongitude),
		Fields:             f,
	}
	if id := f.Int(FieldPeopleID); id != nil {
		p.PeopleID = *id
	}
	return p
}

func newCountry(f Fields) *Country {
	return &Country{
		Code:                strings.TrimSpace(f.Str(FieldCountryCode)),
		Name:                f.Str(FieldCountryName),
		Continent:           f.Str(FieldContinent),
		Region:              f.Str(FieldRegionName),
		PercentChristianity: f.Float(FieldPercentChristianity),
		PercentEvangelical:  f.Float(FieldPercentEvangelical),
		CntPeoples:          f.Int(FieldCntPeoples),
		CntPeoplesLR:        f.Int(FieldCntPeoplesLR),
		JPScale:             f.Int(FieldJPScaleCtry),
		Fields:              f,
	}
}

func newLanguage(f Fields) *Language {
	return &Language{
		Code:            strings.TrimSpace(f.Str(FieldLanguageCode)),
		Name:            f.Str(FieldLanguageName),
		HubCountry:      f.Str(FieldHubCountry),
		BibleStatus:     f.Int(FieldBibleStatus),
		HasJesusFilm:    f.Flag(FieldHasJesusFilm),
		AudioRecordings: f.Flag(FieldAudioRecordings),
		Status:          f.Str(FieldStatus),
		Fields:          f,
	}
}
