package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("listings")

		collection.Fields.Add(
			&core.TextField{Name: "name", Required: true, Max: 32},
			&core.TextField{Name: "description", Max: 150},
			&core.TextField{Name: "category"},
			&core.URLField{Name: "image"},
			&core.RelationField{
				Name:         "owner",
				Required:     true,
				CollectionId: "_pb_users_auth_",
				MaxSelect:    1,
			},
			&core.NumberField{Name: "start_bid", Required: true},
			&core.DateField{Name: "end_date", Required: true},
			&core.BoolField{Name: "active"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_listings_active", false, "active", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("listings")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
