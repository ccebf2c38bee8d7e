package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"auction-system/marketerrors"
	"auction-system/models"
)

// PBStore persists the marketplace in PocketBase collections. The Active
// flag transition goes through a raw conditional UPDATE so two racing
// closure triggers cannot both win.
type PBStore struct {
	app core.App
}

func NewPBStore(app core.App) *PBStore {
	return &PBStore{app: app}
}

func (s *PBStore) CreateListing(ctx context.Context, l *models.Listing) error {
	collection, err := s.app.FindCollectionByNameOrId("listings")
	if err != nil {
		return fmt.Errorf("store: find listings collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("name", l.Name)
	record.Set("description", l.Description)
	record.Set("category", l.Category)
	record.Set("image", l.ImageURL)
	record.Set("owner", l.OwnerID)
	record.Set("start_bid", l.StartBid.InexactFloat64())
	record.Set("end_date", l.EndDate)
	record.Set("active", l.Active)

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("store: create listing: %w", err)
	}

	l.ID = record.Id
	l.Created = record.GetDateTime("created").Time()
	return nil
}

func (s *PBStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	record, err := s.app.FindRecordById("listings", id)
	if err != nil {
		return nil, fmt.Errorf("store: listing %s: %w", id, marketerrors.ErrListingNotFound)
	}
	return listingFromRecord(record), nil
}

func (s *PBStore) ActiveListings(ctx context.Context) ([]*models.Listing, error) {
	records, err := s.app.FindRecordsByFilter("listings", "active = true", "-created", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("store: active listings: %w", err)
	}

	listings := make([]*models.Listing, 0, len(records))
	for _, r := range records {
		listings = append(listings, listingFromRecord(r))
	}
	return listings, nil
}

func (s *PBStore) ExpiredListingIDs(ctx context.Context, now time.Time) ([]string, error) {
	records, err := s.app.FindRecordsByFilter(
		"listings",
		"active = true && end_date <= {:now}",
		"end_date", 0, 0,
		dbx.Params{"now": now.UTC()},
	)
	if err != nil {
		return nil, fmt.Errorf("store: expired listings: %w", err)
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Id)
	}
	return ids, nil
}

func (s *PBStore) DeactivateListing(ctx context.Context, id string) (bool, error) {
	// Row-level conditional update: exactly one caller observes the flip.
	res, err := s.app.DB().
		NewQuery("UPDATE listings SET active = false WHERE id = {:id} AND active = true").
		Bind(dbx.Params{"id": id}).
		Execute()
	if err != nil {
		return false, fmt.Errorf("store: deactivate listing %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: deactivate listing %s: %w", id, err)
	}
	return affected > 0, nil
}

func (s *PBStore) AddWonListing(ctx context.Context, userID, listingID string) error {
	user, err := s.app.FindRecordById("users", userID)
	if err != nil {
		return fmt.Errorf("store: user %s: %w", userID, marketerrors.ErrUserNotFound)
	}

	winlist := user.GetStringSlice("winlist")
	for _, id := range winlist {
		if id == listingID {
			return nil
		}
	}
	user.Set("winlist", append(winlist, listingID))

	if err := s.app.Save(user); err != nil {
		return fmt.Errorf("store: update winlist for %s: %w", userID, err)
	}
	return nil
}

func (s *PBStore) RecordBid(ctx context.Context, b *models.Bid) error {
	collection, err := s.app.FindCollectionByNameOrId("bids")
	if err != nil {
		return fmt.Errorf("store: find bids collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("listing", b.ListingID)
	record.Set("user", b.UserID)
	record.Set("value", b.Value.InexactFloat64())

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("store: record bid: %w", err)
	}

	b.ID = record.Id
	b.Created = record.GetDateTime("created").Time()
	return nil
}

func (s *PBStore) HighestBid(ctx context.Context, listingID string) (*models.Bid, error) {
	records, err := s.app.FindRecordsByFilter(
		"bids",
		"listing = {:listing}",
		"-value,created", 1, 0,
		dbx.Params{"listing": listingID},
	)
	if err != nil {
		return nil, fmt.Errorf("store: highest bid for %s: %w", listingID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("store: highest bid for %s: %w", listingID, marketerrors.ErrNoBids)
	}
	return bidFromRecord(records[0]), nil
}

func (s *PBStore) BidsForListing(ctx context.Context, listingID string) ([]*models.Bid, error) {
	records, err := s.app.FindRecordsByFilter(
		"bids",
		"listing = {:listing}",
		"-value,created", 0, 0,
		dbx.Params{"listing": listingID},
	)
	if err != nil {
		return nil, fmt.Errorf("store: bids for %s: %w", listingID, err)
	}

	bids := make([]*models.Bid, 0, len(records))
	for _, r := range records {
		bids = append(bids, bidFromRecord(r))
	}
	return bids, nil
}

func (s *PBStore) CreateComment(ctx context.Context, c *models.Comment) error {
	collection, err := s.app.FindCollectionByNameOrId("comments")
	if err != nil {
		return fmt.Errorf("store: find comments collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("listing", c.ListingID)
	record.Set("user", c.UserID)
	record.Set("username", c.Username)
	record.Set("text", c.Text)

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("store: create comment: %w", err)
	}

	c.ID = record.Id
	c.Created = record.GetDateTime("created").Time()
	return nil
}

func (s *PBStore) CommentsForListing(ctx context.Context, listingID string) ([]*models.Comment, error) {
	records, err := s.app.FindRecordsByFilter(
		"comments",
		"listing = {:listing}",
		"created", 0, 0,
		dbx.Params{"listing": listingID},
	)
	if err != nil {
		return nil, fmt.Errorf("store: comments for %s: %w", listingID, err)
	}

	comments := make([]*models.Comment, 0, len(records))
	for _, r := range records {
		comments = append(comments, &models.Comment{
			ID:        r.Id,
			ListingID: r.GetString("listing"),
			UserID:    r.GetString("user"),
			Username:  r.GetString("username"),
			Text:      r.GetString("text"),
			Created:   r.GetDateTime("created").Time(),
		})
	}
	return comments, nil
}

func (s *PBStore) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	record, err := s.app.FindRecordById("chats", id)
	if err != nil {
		return nil, fmt.Errorf("store: chat %s: %w", id, marketerrors.ErrChatNotFound)
	}
	return &models.Chat{ID: record.Id, Members: record.GetStringSlice("members")}, nil
}

func (s *PBStore) FindChatByMembers(ctx context.Context, userA, userB string) (*models.Chat, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"chats",
		"members.id ?= {:a} && members.id ?= {:b}",
		dbx.Params{"a": userA, "b": userB},
	)
	if err != nil {
		return nil, fmt.Errorf("store: chat for %s/%s: %w", userA, userB, marketerrors.ErrChatNotFound)
	}
	return &models.Chat{ID: record.Id, Members: record.GetStringSlice("members")}, nil
}

func (s *PBStore) CreateChat(ctx context.Context, members []string) (*models.Chat, error) {
	collection, err := s.app.FindCollectionByNameOrId("chats")
	if err != nil {
		return nil, fmt.Errorf("store: find chats collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("members", members)

	if err := s.app.Save(record); err != nil {
		return nil, fmt.Errorf("store: create chat: %w", err)
	}
	return &models.Chat{ID: record.Id, Members: members}, nil
}

func (s *PBStore) CreateMessage(ctx context.Context, m *models.ChatMessage) error {
	collection, err := s.app.FindCollectionByNameOrId("messages")
	if err != nil {
		return fmt.Errorf("store: find messages collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("chat", m.ChatID)
	record.Set("sender", m.SenderID)
	record.Set("text", m.Text)
	record.Set("unread", m.Unread)

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("store: create message: %w", err)
	}

	m.ID = record.Id
	m.Created = record.GetDateTime("created").Time()
	return nil
}

func (s *PBStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	records, err := s.app.FindRecordsByFilter(
		"messages",
		"unread = true && sender != {:user} && chat.members.id ?= {:user}",
		"", 0, 0,
		dbx.Params{"user": userID},
	)
	if err != nil {
		return 0, fmt.Errorf("store: unread count for %s: %w", userID, err)
	}
	return len(records), nil
}

func (s *PBStore) MarkChatRead(ctx context.Context, chatID, readerID string) error {
	records, err := s.app.FindRecordsByFilter(
		"messages",
		"chat = {:chat} && sender != {:reader} && unread = true",
		"", 0, 0,
		dbx.Params{"chat": chatID, "reader": readerID},
	)
	if err != nil {
		return fmt.Errorf("store: mark chat %s read: %w", chatID, err)
	}

	for _, r := range records {
		r.Set("unread", false)
		if err := s.app.Save(r); err != nil {
			return fmt.Errorf("store: mark message %s read: %w", r.Id, err)
		}
	}
	return nil
}

func (s *PBStore) SetInboxCount(ctx context.Context, userID string, count int) error {
	user, err := s.app.FindRecordById("users", userID)
	if err != nil {
		return fmt.Errorf("store: user %s: %w", userID, marketerrors.ErrUserNotFound)
	}

	user.Set("inbox", count)
	if err := s.app.Save(user); err != nil {
		return fmt.Errorf("store: update inbox for %s: %w", userID, err)
	}
	return nil
}

func (s *PBStore) GetUsername(ctx context.Context, userID string) (string, error) {
	user, err := s.app.FindRecordById("users", userID)
	if err != nil {
		return "", fmt.Errorf("store: user %s: %w", userID, marketerrors.ErrUserNotFound)
	}
	return user.GetString("name"), nil
}

func listingFromRecord(r *core.Record) *models.Listing {
	return &models.Listing{
		ID:          r.Id,
		Name:        r.GetString("name"),
		Description: r.GetString("description"),
		Category:    r.GetString("category"),
		ImageURL:    r.GetString("image"),
		OwnerID:     r.GetString("owner"),
		StartBid:    decimal.NewFromFloat(r.GetFloat("start_bid")).Round(2),
		Created:     r.GetDateTime("created").Time(),
		EndDate:     r.GetDateTime("end_date").Time(),
		Active:      r.GetBool("active"),
	}
}

func bidFromRecord(r *core.Record) *models.Bid {
	return &models.Bid{
		ID:        r.Id,
		ListingID: r.GetString("listing"),
		UserID:    r.GetString("user"),
		Value:     decimal.NewFromFloat(r.GetFloat("value")).Round(2),
		Created:   r.GetDateTime("created").Time(),
	}
}
