package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Adds the inbox unread counter and the won-listings relation to the auth
// collection.
func init() {
	m.Register(func(app core.App) error {
		listings, err := app.FindCollectionByNameOrId("listings")
		if err != nil {
			return err
		}

		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		users.Fields.Add(
			&core.NumberField{Name: "inbox", OnlyInt: true},
			&core.RelationField{
				Name:         "winlist",
				CollectionId: listings.Id,
				MaxSelect:    999,
			},
		)

		return app.Save(users)
	}, func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		users.Fields.RemoveByName("inbox")
		users.Fields.RemoveByName("winlist")

		return app.Save(users)
	})
}
