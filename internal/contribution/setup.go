package contribution

import (
	"log"

	"github.com/georiviere/georiviere-api/internal/db"
)

func Init() {
	err := db.DB.AutoMigrate(
		&ContributionStatus{},
		&NaturePollution{},
		&SeverityType{},
		&Contribution{},
		&ContributionQuantity{},
		&ContributionQuality{},
		&ContributionFaunaFlora{},
		&ContributionLandscapeElements{},
		&ContributionPotentialDamage{},
		&CustomContributionType{},
		&CustomFieldSpecification{},
		&CustomContribution{},
	)
	if err != nil {
		log.Fatal("Failed to auto-migrate contribution tables: ", err)
	}
}
