package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-system/marketerrors"
	"auction-system/models"
)

// MemoryStore is a concurrency-safe in-memory Store used by the service
// tests. It mirrors the PocketBase implementation's semantics, including
// the conditional Active flip.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int
	listings map[string]*models.Listing
	bids     map[string][]*models.Bid // listingID -> ordered ledger
	comments map[string][]*models.Comment
	chats    map[string]*models.Chat
	messages map[string][]*models.ChatMessage // chatID -> messages
	winlists map[string][]string              // userID -> listingIDs
	inbox    map[string]int
	names    map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[string]*models.Listing),
		bids:     make(map[string][]*models.Bid),
		comments: make(map[string][]*models.Comment),
		chats:    make(map[string]*models.Chat),
		messages: make(map[string][]*models.ChatMessage),
		winlists: make(map[string][]string),
		inbox:    make(map[string]int),
		names:    make(map[string]string),
	}
}

func (s *MemoryStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func (s *MemoryStore) CreateListing(ctx context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.ID = s.nextID("listing")
	if l.Created.IsZero() {
		l.Created = time.Now().UTC()
	}
	cp := *l
	s.listings[l.ID] = &cp
	return nil
}

func (s *MemoryStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, fmt.Errorf("memory: listing %s: %w", id, marketerrors.ErrListingNotFound)
	}
	cp := *l
	return &cp, nil
}

func (s *MemoryStore) ActiveListings(ctx context.Context) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Listing
	for _, l := range s.listings {
		if l.Active {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ExpiredListingIDs(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, l := range s.listings {
		if l.Active && !l.EndDate.After(now) {
			ids = append(ids, l.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) DeactivateListing(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok || !l.Active {
		return false, nil
	}
	l.Active = false
	return true, nil
}

func (s *MemoryStore) AddWonListing(ctx context.Context, userID, listingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.winlists[userID] {
		if id == listingID {
			return nil
		}
	}
	s.winlists[userID] = append(s.winlists[userID], listingID)
	return nil
}

func (s *MemoryStore) RecordBid(ctx context.Context, b *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = s.nextID("bid")
	if b.Created.IsZero() {
		b.Created = time.Now().UTC()
	}
	cp := *b
	s.bids[b.ListingID] = append(s.bids[b.ListingID], &cp)
	return nil
}

func (s *MemoryStore) HighestBid(ctx context.Context, listingID string) (*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := s.bids[listingID]
	if len(bids) == 0 {
		return nil, fmt.Errorf("memory: highest bid for %s: %w", listingID, marketerrors.ErrNoBids)
	}

	// First ledger entry wins ties.
	winning := bids[0]
	for _, b := range bids[1:] {
		if b.Value.GreaterThan(winning.Value) {
			winning = b
		}
	}
	cp := *winning
	return &cp, nil
}

func (s *MemoryStore) BidsForListing(ctx context.Context, listingID string) ([]*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := s.bids[listingID]
	out := make([]*models.Bid, 0, len(bids))
	for _, b := range bids {
		cp := *b
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value.GreaterThan(out[j].Value)
	})
	return out, nil
}

func (s *MemoryStore) CreateComment(ctx context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.nextID("comment")
	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}
	cp := *c
	s.comments[c.ListingID] = append(s.comments[c.ListingID], &cp)
	return nil
}

func (s *MemoryStore) CommentsForListing(ctx context.Context, listingID string) ([]*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comments := s.comments[listingID]
	out := make([]*models.Comment, 0, len(comments))
	for _, c := range comments {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, fmt.Errorf("memory: chat %s: %w", id, marketerrors.ErrChatNotFound)
	}
	cp := *chat
	cp.Members = append([]string(nil), chat.Members...)
	return &cp, nil
}

func (s *MemoryStore) FindChatByMembers(ctx context.Context, userA, userB string) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, chat := range s.chats {
		if containsMember(chat.Members, userA) && containsMember(chat.Members, userB) {
			cp := *chat
			cp.Members = append([]string(nil), chat.Members...)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("memory: chat for %s/%s: %w", userA, userB, marketerrors.ErrChatNotFound)
}

func (s *MemoryStore) CreateChat(ctx context.Context, members []string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := &models.Chat{
		ID:      s.nextID("chat"),
		Members: append([]string(nil), members...),
	}
	s.chats[chat.ID] = chat

	cp := *chat
	cp.Members = append([]string(nil), chat.Members...)
	return &cp, nil
}

// AddChat inserts a chat with the given members, including degenerate
// member counts. Intended for tests only.
func (s *MemoryStore) AddChat(chat *models.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chat.ID == "" {
		chat.ID = s.nextID("chat")
	}
	cp := *chat
	cp.Members = append([]string(nil), chat.Members...)
	s.chats[chat.ID] = &cp
}

func (s *MemoryStore) CreateMessage(ctx context.Context, m *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[m.ChatID]; !ok {
		return fmt.Errorf("memory: message for chat %s: %w", m.ChatID, marketerrors.ErrChatNotFound)
	}

	m.ID = s.nextID("message")
	if m.Created.IsZero() {
		m.Created = time.Now().UTC()
	}
	cp := *m
	s.messages[m.ChatID] = append(s.messages[m.ChatID], &cp)
	return nil
}

func (s *MemoryStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for chatID, msgs := range s.messages {
		chat := s.chats[chatID]
		if chat == nil || !containsMember(chat.Members, userID) {
			continue
		}
		for _, m := range msgs {
			if m.Unread && m.SenderID != userID {
				count++
			}
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkChatRead(ctx context.Context, chatID, readerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages[chatID] {
		if m.SenderID != readerID {
			m.Unread = false
		}
	}
	return nil
}

func (s *MemoryStore) SetInboxCount(ctx context.Context, userID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inbox[userID] = count
	return nil
}

// InboxCount reports the stored inbox counter. Intended for tests only.
func (s *MemoryStore) InboxCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inbox[userID]
}

// WonListings reports a user's won-listing ids. Intended for tests only.
func (s *MemoryStore) WonListings(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.winlists[userID]...)
}

func (s *MemoryStore) SetUsername(userID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[userID] = name
}

func (s *MemoryStore) GetUsername(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.names[userID]
	if !ok {
		return "", fmt.Errorf("memory: user %s: %w", userID, marketerrors.ErrUserNotFound)
	}
	return name, nil
}

func containsMember(members []string, userID string) bool {
	for _, m := range members {
		if m == userID {
			return true
		}
	}
	return false
}
