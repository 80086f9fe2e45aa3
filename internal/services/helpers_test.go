package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teamhub254/Homeseeker-sub000/internal/auth"
	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/realtime"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

var allCollections = []string{
	usersCollection, profilesCollection, propertiesCollection, inquiriesCollection,
	chatMessagesCollection, favoritesCollection, configCollection, apiConfigCollection,
	emailTemplatesCollection,
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:                 "Homeseeker",
		SearchDefaultLimit:      24,
		SearchMaxLimit:          100,
		InquiryMessageMaxLength: 2000,
		ChatMessageMaxLength:    4000,
	}
}

type recordingFeed struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (f *recordingFeed) Publish(_ context.Context, c realtime.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, c)
	return nil
}

func (f *recordingFeed) Subscribe(context.Context, string, realtime.Filter) (*realtime.Subscription, error) {
	return realtime.NewSubscription(make(chan realtime.Change), nil), nil
}

func (f *recordingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.changes)
}

type testServices struct {
	db         *mongo.Database
	cfg        *config.Config
	feed       *recordingFeed
	users      IUserService
	profiles   IProfileService
	properties IPropertyService
	inquiries  IInquiryService
	chat       IChatService
	favorites  IFavoriteService
}

func setupServices(t *testing.T, dbName string) *testServices {
	t.Helper()
	db := utils.SetupTestDB(t, dbName, allCollections...)
	cfg := testConfig()
	policy, err := auth.NewPasswordPolicy("^.{8,}$")
	require.NoError(t, err)

	s := &testServices{db: db, cfg: cfg, feed: &recordingFeed{}}
	s.profiles = NewProfileService(db)
	s.users = NewUserService(db, policy, s.profiles)
	s.properties = NewPropertyService(db, cfg, s.profiles)
	s.inquiries = NewInquiryService(db, cfg, s.properties)
	s.chat = NewChatService(db, cfg, s.inquiries, s.properties, s.profiles, s.feed)
	s.favorites = NewFavoriteService(db, s.properties)
	return s
}

func (s *testServices) signUp(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()
	user, _, err := s.users.SignUp(context.Background(), SignUpInput{
		Email:        email,
		Password:     "password123",
		ProfileInput: models.ProfileInput{FirstName: "Test", LastName: "User", Role: role},
	})
	require.NoError(t, err)
	return user
}

func (s *testServices) createProperty(t *testing.T, owner utils.SixID, title string, price float64) *models.Property {
	t.Helper()
	p, err := s.properties.CreateProperty(context.Background(), owner, models.PropertyInput{
		Title:   title,
		Address: models.Address{City: "Nairobi"},
		Price:   price,
	})
	require.NoError(t, err)
	return p
}

func exampleForm(propertyID utils.SixID) models.InquiryForm {
	return models.InquiryForm{
		PropertyID: propertyID,
		Name:       "Jane",
		Email:      "jane@x.com",
		Phone:      "0712345678",
		Message:    "Interested",
	}
}
