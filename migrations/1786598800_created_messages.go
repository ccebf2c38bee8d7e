package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		chats, err := app.FindCollectionByNameOrId("chats")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("messages")

		collection.Fields.Add(
			&core.RelationField{
				Name:          "chat",
				Required:      true,
				CollectionId:  chats.Id,
				MaxSelect:     1,
				CascadeDelete: true,
			},
			&core.RelationField{
				Name:         "sender",
				Required:     true,
				CollectionId: "_pb_users_auth_",
				MaxSelect:    1,
			},
			&core.TextField{Name: "text", Required: true, Max: 300},
			&core.BoolField{Name: "unread"},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		collection.AddIndex("idx_messages_chat_unread", false, "chat, unread", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("messages")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
