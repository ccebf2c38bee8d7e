package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("chats")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "members",
				CollectionId: "_pb_users_auth_",
				MaxSelect:    2,
			},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("chats")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
