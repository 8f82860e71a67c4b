package jpdata_test

import (
	jpdata "github.com/lukeslp/joshua-project-data"
)

func group(id int, country, language string, lr string) map[string]interface{} {
	m := map[string]interface{}{
		"PeopleID3":          float64(id),
		"ROG3":               country,
		"PeopNameInCountry":  "People " + country,
		"Population":         float64(1000 * id),
		"LeastReached":       lr,
		"Frontier":           "N",
		"PrimaryReligion":    "Islam",
		"PercentEvangelical": 0.1,
		"PercentAdherents":   1.5,
	}
	if language != "" {
		m["ROL3"] = language
	}
	return m
}

func country(code, name string) map[string]interface{} {
	return map[string]interface{}{
		"ROG3":                code,
		"Ctry":                name,
		"Continent":           "Asia",
		"RegionName":          "South Asia",
		"PercentChristianity": 2.3,
		"PercentEvangelical":  0.5,
		"CntPeoples":          float64(2000),
		"CntPeoplesLR":        float64(1900),
		"JPScaleCtry":         "1",
		"ISO3":                code + "X",
	}
}

func language(code, name string) map[string]interface{} {
	return map[string]interface{}{
		"ROL3":            code,
		"Language":        name,
		"HubCountry":      "India",
		"BibleStatus":     float64(5),
		"BibleYear":       "1818-1835",
		"NTYear":          nil,
		"HasJesusFilm":    "Y",
		"AudioRecordings": "Y",
		"Status":          "L",
	}
}

func sources(groups, countries, languages []interface{}) jpdata.Sources {
	return jpdata.Sources{
		PeopleGroups: jpdata.NewSliceSource(groups...),
		Countries:    jpdata.NewSliceSource(countries...),
		Languages:    jpdata.NewSliceSource(languages...),
	}
}

// scenario returns three people groups in two known countries and one
// unknown one, all speaking the single known language.
func scenario() jpdata.Sources {
	return sources(
		[]interface{}{
			group(1, "IN", "hin", "Y"),
			group(2, "NP", "hin", "N"),
			group(3, "ZZ", "hin", "Y"),
		},
		[]interface{}{country("IN", "India"), country("NP", "Nepal")},
		[]interface{}{language("hin", "Hindi")},
	)
}

func mustLoad(srcs jpdata.Sources) *jpdata.Collections {
	cols, err := jpdata.Load(srcs)
	if err != nil {
		panic(err)
	}
	return cols
}
