package api

import (
	"github.com/lukeslp/joshua-project-data/file"
)

// Dataset describes one collection served by the Joshua Project API.
type Dataset struct {
	Name     string
	Endpoint string
	// File is the name the normalized collection is saved under.
	File string
	// ExpectedRecords is roughly how many records the API served when the
	// dataset was last checked. A large difference is logged as a warning.
	ExpectedRecords int
	Description     string
}

// Datasets lists every collection the fetcher knows about, in fetch order.
var Datasets = []Dataset{
	{
		Name:            "people_groups",
		Endpoint:        "people_groups.json",
		File:            file.PeopleGroupsFile,
		ExpectedRecords: 16382,
		Description:     "People groups in countries (PGIC)",
	},
	{
		Name:            "countries",
		Endpoint:        "countries.json",
		File:            file.CountriesFile,
		ExpectedRecords: 238,
		Description:     "Country-level statistics and demographics",
	},
	{
		Name:            "languages",
		Endpoint:        "languages.json",
		File:            file.LanguagesFile,
		ExpectedRecords: 7134,
		Description:     "Language details and translation status",
	},
	{
		Name:            "totals",
		Endpoint:        "totals.json",
		File:            file.TotalsFile,
		ExpectedRecords: 38,
		Description:     "Global summary statistics",
	},
}

// ExpectedTolerance is how far a record count may stray from
// ExpectedRecords before it is reported.
const ExpectedTolerance = 10

// DatasetByName looks a dataset up by name.
func DatasetByName(name string) (Dataset, bool) {
	for _, ds := range Datasets {
		if ds.Name == name {
			return ds, true
		}
	}
	return Dataset{}, false
}
