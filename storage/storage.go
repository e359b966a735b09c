package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"motime/domain"
)

// quoteCatalogPartition is the partition holding the shared quote catalog.
// User partitions are identifiers issued by the identity service, so they can
// never collide with it.
const quoteCatalogPartition = "quote"

// Storage persists day records, profiles and quote picks in Azure tables and
// publishes a change notification to Redis after every successful write. The
// notifications drive the push subscriptions in feed.go.
type Storage struct {
	days     *aztables.Client
	users    *aztables.Client
	accounts *aztables.Client
	quotes   *aztables.Client

	redis         *redis.Client
	channelPrefix string
	retryDelay    time.Duration
}

// New creates a Storage instance from the given connection string.
func New(connStr, daysTable, usersTable, accountsTable, quotesTable string, rc *redis.Client, channelPrefix string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{
		days:          svc.NewClient(daysTable),
		users:         svc.NewClient(usersTable),
		accounts:      svc.NewClient(accountsTable),
		quotes:        svc.NewClient(quotesTable),
		redis:         rc,
		channelPrefix: channelPrefix,
		retryDelay:    time.Second,
	}, nil
}

type dayEntity struct {
	aztables.Entity
	Tasks      string `json:"Tasks"`
	Categories string `json:"Categories"`
}

func encodeDayEntity(userID, date string, rec domain.DayRecord) ([]byte, error) {
	tasks, err := sonic.Marshal(rec.Tasks)
	if err != nil {
		return nil, err
	}
	categories, err := sonic.Marshal(rec.Categories)
	if err != nil {
		return nil, err
	}
	ent := dayEntity{
		Entity:     aztables.Entity{PartitionKey: userID, RowKey: date},
		Tasks:      string(tasks),
		Categories: string(categories),
	}
	return sonic.Marshal(ent)
}

func decodeDayEntity(data []byte) (string, domain.DayRecord, error) {
	var ent dayEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return "", domain.DayRecord{}, err
	}
	rec := domain.DayRecord{}
	if ent.Tasks != "" {
		if err := sonic.Unmarshal([]byte(ent.Tasks), &rec.Tasks); err != nil {
			return "", domain.DayRecord{}, fmt.Errorf("day %s has malformed tasks: %w", ent.RowKey, err)
		}
	}
	if ent.Categories != "" {
		if err := sonic.Unmarshal([]byte(ent.Categories), &rec.Categories); err != nil {
			return "", domain.DayRecord{}, fmt.Errorf("day %s has malformed categories: %w", ent.RowKey, err)
		}
	}
	return ent.RowKey, rec.Normalize(), nil
}

// ReadDay retrieves one day record if present.
func (s *Storage) ReadDay(ctx context.Context, userID, date string) (*domain.DayRecord, error) {
	ent, err := s.days.GetEntity(ctx, userID, date, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	_, rec, err := decodeDayEntity(ent.Value)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListDays retrieves every stored day record for the user, keyed by date.
func (s *Storage) ListDays(ctx context.Context, userID string) (map[string]domain.DayRecord, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.days.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	records := map[string]domain.DayRecord{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			date, rec, err := decodeDayEntity(e)
			if err != nil {
				return nil, err
			}
			records[date] = rec
		}
	}
	return records, nil
}

// WriteDay merge-writes the full record snapshot for one date and notifies
// subscribers. Insert-or-merge covers both fresh and existing days.
func (s *Storage) WriteDay(ctx context.Context, userID, date string, rec domain.DayRecord) error {
	payload, err := encodeDayEntity(userID, date, rec)
	if err != nil {
		return err
	}
	if _, err := s.days.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeMerge}); err != nil {
		return err
	}
	s.publish(ctx, changeEvent{ID: uuid.NewString(), UserID: userID, Kind: kindDay, Date: date, Time: time.Now().UnixNano()})
	return nil
}

type profileEntity struct {
	aztables.Entity
	PhotoURL string `json:"PhotoURL"`
	Quote    string `json:"Quote"`
}

// ReadProfile retrieves the user's profile document if present.
func (s *Storage) ReadProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ent, err := s.users.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	var p profileEntity
	if err := sonic.Unmarshal(ent.Value, &p); err != nil {
		return nil, err
	}
	return &domain.Profile{PhotoURL: p.PhotoURL, Quote: p.Quote}, nil
}

// WriteProfile merge-writes the non-nil patch fields and notifies subscribers.
func (s *Storage) WriteProfile(ctx context.Context, userID string, patch domain.ProfilePatch) error {
	ent := map[string]any{
		"PartitionKey": userID,
		"RowKey":       userID,
	}
	if patch.PhotoURL != nil {
		ent["PhotoURL"] = *patch.PhotoURL
	}
	if patch.Quote != nil {
		ent["Quote"] = *patch.Quote
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	if _, err := s.users.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeMerge}); err != nil {
		return err
	}
	s.publish(ctx, changeEvent{ID: uuid.NewString(), UserID: userID, Kind: kindProfile, Time: time.Now().UnixNano()})
	return nil
}

type accountEntity struct {
	aztables.Entity
	UserID       string `json:"UserID"`
	DisplayName  string `json:"DisplayName"`
	PhotoURL     string `json:"PhotoURL"`
	PasswordHash string `json:"PasswordHash"`
}

// GetAccount retrieves the account registered for an email if present.
func (s *Storage) GetAccount(ctx context.Context, email string) (*domain.Account, error) {
	ent, err := s.accounts.GetEntity(ctx, email, email, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	var a accountEntity
	if err := sonic.Unmarshal(ent.Value, &a); err != nil {
		return nil, err
	}
	return &domain.Account{ID: a.UserID, Email: a.RowKey, DisplayName: a.DisplayName, PhotoURL: a.PhotoURL, PasswordHash: a.PasswordHash}, nil
}

// InsertAccount stores a new account. An existing row for the same email
// yields domain.ErrAccountExists.
func (s *Storage) InsertAccount(ctx context.Context, acct domain.Account) error {
	ent := accountEntity{
		Entity:       aztables.Entity{PartitionKey: acct.Email, RowKey: acct.Email},
		UserID:       acct.ID,
		DisplayName:  acct.DisplayName,
		PhotoURL:     acct.PhotoURL,
		PasswordHash: acct.PasswordHash,
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	if _, err := s.accounts.AddEntity(ctx, payload, nil); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 409 {
			return domain.ErrAccountExists
		}
		return err
	}
	return nil
}

type quoteEntity struct {
	aztables.Entity
	Text   string `json:"Text"`
	Author string `json:"Author"`
}

// ListQuotes retrieves the shared quote catalog.
func (s *Storage) ListQuotes(ctx context.Context) ([]domain.Quote, error) {
	filter := "PartitionKey eq '" + quoteCatalogPartition + "'"
	pager := s.quotes.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	quotes := []domain.Quote{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent quoteEntity
			if err := sonic.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			quotes = append(quotes, domain.Quote{Text: ent.Text, Author: ent.Author})
		}
	}
	return quotes, nil
}

// AddQuote appends one quote to the shared catalog.
func (s *Storage) AddQuote(ctx context.Context, q domain.Quote) error {
	ent := quoteEntity{
		Entity: aztables.Entity{PartitionKey: quoteCatalogPartition, RowKey: uuid.NewString()},
		Text:   q.Text,
		Author: q.Author,
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.quotes.UpsertEntity(ctx, payload, nil)
	return err
}

// GetDailyPick retrieves the quote already chosen for (user, date) if any.
func (s *Storage) GetDailyPick(ctx context.Context, userID, date string) (*domain.DailyPick, error) {
	ent, err := s.quotes.GetEntity(ctx, userID, date, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	var q quoteEntity
	if err := sonic.Unmarshal(ent.Value, &q); err != nil {
		return nil, err
	}
	return &domain.DailyPick{UserID: userID, Date: date, Text: q.Text, Author: q.Author}, nil
}

// WriteDailyPick persists the chosen quote so it stays stable for the day.
func (s *Storage) WriteDailyPick(ctx context.Context, pick domain.DailyPick) error {
	ent := quoteEntity{
		Entity: aztables.Entity{PartitionKey: pick.UserID, RowKey: pick.Date},
		Text:   pick.Text,
		Author: pick.Author,
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.quotes.UpsertEntity(ctx, payload, nil)
	return err
}
