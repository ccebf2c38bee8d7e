package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		listings, err := app.FindCollectionByNameOrId("listings")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("comments")

		collection.Fields.Add(
			&core.RelationField{
				Name:          "listing",
				Required:      true,
				CollectionId:  listings.Id,
				MaxSelect:     1,
				CascadeDelete: true,
			},
			&core.RelationField{
				Name:         "user",
				Required:     true,
				CollectionId: "_pb_users_auth_",
				MaxSelect:    1,
			},
			&core.TextField{Name: "username"},
			&core.TextField{Name: "text", Required: true, Max: 100},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		collection.AddIndex("idx_comments_listing", false, "listing", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("comments")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
