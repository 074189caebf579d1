package derived

import (
	"github.com/macrodatos/ingesta/ingesta/database/models"
)

// Variable IDs of the non-traditional services group in the catalog. The
// four inputs are ingested by their own jobs; the target is rebuilt here.
const (
	varFletesMaritimos      = 26
	varTurismoReceptivo     = 27
	varSoftwareExportado    = 28
	varServiciosFinancieros = 29
	varServiciosNoTrad      = 30
)

// DefaultRecipes returns the built-in derived series. "servicios no
// tradicionales" is the per-month mean of its four source series in the
// international-economy country over a 24-month horizon, on months where
// at least one source has a value.
func DefaultRecipes() []Recipe {
	intl := models.InternationalEconomyID
	return []Recipe{
		{
			Name:   "servicios_no_tradicionales",
			Target: MasterKey{VariableID: varServiciosNoTrad, CountryID: intl},
			Inputs: []MasterKey{
				{VariableID: varFletesMaritimos, CountryID: intl},
				{VariableID: varTurismoReceptivo, CountryID: intl},
				{VariableID: varSoftwareExportado, CountryID: intl},
				{VariableID: varServiciosFinancieros, CountryID: intl},
			},
			HorizonMonths: 24,
			Compute:       MonthlyMean,
		},
	}
}
