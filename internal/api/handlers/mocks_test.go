package handlers_test

import (
	"context"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"github.com/teamhub254/Homeseeker-sub000/internal/auth"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// --- Mocks ---

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) SignUp(ctx context.Context, in services.SignUpInput) (*models.User, *models.Profile, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.User), args.Get(1).(*models.Profile), args.Error(2)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID utils.SixID, currentPassword, newPassword string) error {
	return m.Called(ctx, userID, currentPassword, newPassword).Error(0)
}

type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Create(ctx context.Context, userID utils.SixID, in models.ProfileInput) (*models.Profile, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) Get(ctx context.Context, userID utils.SixID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) GetMany(ctx context.Context, userIDs []utils.SixID) (map[utils.SixID]*models.Profile, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[utils.SixID]*models.Profile), args.Error(1)
}

func (m *MockProfileService) Update(ctx context.Context, userID utils.SixID, updates map[string]interface{}) (*models.Profile, error) {
	args := m.Called(ctx, userID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) SetAvatar(ctx context.Context, userID utils.SixID, key, url string) (string, error) {
	args := m.Called(ctx, userID, key, url)
	return args.String(0), args.Error(1)
}

func (m *MockProfileService) ClearAvatar(ctx context.Context, userID utils.SixID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

type MockPropertyService struct {
	mock.Mock
}

func (m *MockPropertyService) CreateProperty(ctx context.Context, ownerID utils.SixID, in models.PropertyInput) (*models.Property, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) FindPropertyByID(ctx context.Context, propertyID utils.SixID) (*models.Property, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) UpdateProperty(ctx context.Context, propertyID, ownerID utils.SixID, updates map[string]interface{}) (*models.Property, error) {
	args := m.Called(ctx, propertyID, ownerID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) DeleteProperty(ctx context.Context, propertyID, ownerID utils.SixID) error {
	return m.Called(ctx, propertyID, ownerID).Error(0)
}

func (m *MockPropertyService) AddImage(ctx context.Context, propertyID utils.SixID, image models.PropertyImage) error {
	return m.Called(ctx, propertyID, image).Error(0)
}

func (m *MockPropertyService) RemoveImage(ctx context.Context, propertyID, ownerID utils.SixID, key string) error {
	return m.Called(ctx, propertyID, ownerID, key).Error(0)
}

func (m *MockPropertyService) FindPropertyIDsByOwner(ctx context.Context, ownerID utils.SixID) ([]utils.SixID, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]utils.SixID), args.Error(1)
}

func (m *MockPropertyService) FindPropertiesByIDs(ctx context.Context, ids []utils.SixID, includeDeleted bool) (map[utils.SixID]*models.Property, error) {
	args := m.Called(ctx, ids, includeDeleted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[utils.SixID]*models.Property), args.Error(1)
}

func (m *MockPropertyService) ListOwnerProperties(ctx context.Context, ownerID utils.SixID) ([]models.Property, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Property), args.Error(1)
}

func (m *MockPropertyService) SearchProperties(ctx context.Context, q services.PropertyQuery) (*services.SearchResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SearchResult), args.Error(1)
}

type MockInquiryService struct {
	mock.Mock
}

func (m *MockInquiryService) CreateInquiry(ctx context.Context, form models.InquiryForm, userID *utils.SixID) (*models.Inquiry, *models.Property, error) {
	args := m.Called(ctx, form, userID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Inquiry), args.Get(1).(*models.Property), args.Error(2)
}

func (m *MockInquiryService) FindInquiryByID(ctx context.Context, inquiryID utils.SixID) (*models.Inquiry, error) {
	args := m.Called(ctx, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) ListForLister(ctx context.Context, listerID utils.SixID) ([]models.InquiryListItem, error) {
	args := m.Called(ctx, listerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InquiryListItem), args.Error(1)
}

func (m *MockInquiryService) ListForUser(ctx context.Context, userID utils.SixID) ([]models.InquiryListItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InquiryListItem), args.Error(1)
}

func (m *MockInquiryService) Respond(ctx context.Context, inquiryID, ownerID utils.SixID, response string) (*models.Inquiry, error) {
	args := m.Called(ctx, inquiryID, ownerID, response)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) SetStatus(ctx context.Context, inquiryID, ownerID utils.SixID, status models.InquiryStatus) (*models.Inquiry, error) {
	args := m.Called(ctx, inquiryID, ownerID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) MarkNotificationSent(ctx context.Context, inquiryID utils.SixID) error {
	return m.Called(ctx, inquiryID).Error(0)
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) GetThread(ctx context.Context, inquiryID, userID utils.SixID) (*models.ThreadInfo, error) {
	args := m.Called(ctx, inquiryID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ThreadInfo), args.Error(1)
}

func (m *MockChatService) ListMessages(ctx context.Context, inquiryID, userID utils.SixID) ([]models.ChatMessage, error) {
	args := m.Called(ctx, inquiryID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *MockChatService) MarkRead(ctx context.Context, inquiryID, readerID utils.SixID) (int64, error) {
	args := m.Called(ctx, inquiryID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChatService) SendMessage(ctx context.Context, inquiryID, senderID, messageID utils.SixID, content string) (*models.ChatMessage, error) {
	args := m.Called(ctx, inquiryID, senderID, messageID, content)
	if fn, ok := args.Get(0).(func(context.Context, utils.SixID, utils.SixID, utils.SixID, string) *models.ChatMessage); ok {
		return fn(ctx, inquiryID, senderID, messageID, content), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatMessage), args.Error(1)
}

type MockFavoriteService struct {
	mock.Mock
}

func (m *MockFavoriteService) AddFavorite(ctx context.Context, userID, propertyID utils.SixID) (*models.Favorite, error) {
	args := m.Called(ctx, userID, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Favorite), args.Error(1)
}

func (m *MockFavoriteService) RemoveFavorite(ctx context.Context, userID, propertyID utils.SixID) error {
	return m.Called(ctx, userID, propertyID).Error(0)
}

func (m *MockFavoriteService) ListFavorites(ctx context.Context, userID utils.SixID) ([]models.FavoriteItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FavoriteItem), args.Error(1)
}

func (m *MockFavoriteService) IsFavorite(ctx context.Context, userID, propertyID utils.SixID) (bool, error) {
	args := m.Called(ctx, userID, propertyID)
	return args.Bool(0), args.Error(1)
}

// MockObjectStorage implements storage.IObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	return m.Called(ctx, bucket, key, body, size, contentType).Error(0)
}

func (m *MockObjectStorage) Download(ctx context.Context, bucket, key string) (*storage.Object, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Object), args.Error(1)
}

func (m *MockObjectStorage) Delete(ctx context.Context, bucket, key string) error {
	return m.Called(ctx, bucket, key).Error(0)
}

func (m *MockObjectStorage) PublicURL(bucket, key string) string {
	return "https://cdn.example.com/" + bucket + "/" + key
}

func (m *MockObjectStorage) GeneratePresignedPutURL(ctx context.Context, bucket, key, contentType string) (string, error) {
	args := m.Called(ctx, bucket, key, contentType)
	return args.String(0), args.Error(1)
}

// MockAsynqClient implements tasks.Enqueuer. Options are not matched.
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// MockSessions implements handlers.SessionManager
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Issue(ctx context.Context, userID utils.SixID, role models.Role, event string) (*auth.Session, error) {
	args := m.Called(ctx, userID, role, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

func (m *MockSessions) Validate(ctx context.Context, token string) (*auth.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

func (m *MockSessions) Revoke(ctx context.Context, claims *auth.Claims) error {
	return m.Called(ctx, claims).Error(0)
}

func (m *MockSessions) Refresh(ctx context.Context, claims *auth.Claims, role models.Role) (*auth.Session, error) {
	args := m.Called(ctx, claims, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

// MockConfigService implements services.IConfigService
type MockConfigService struct {
	mock.Mock
}

func (m *MockConfigService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockConfigService) Get(ctx context.Context, key string) (interface{}, error) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Error(1)
}

func (m *MockConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	return defaultValue
}

func (m *MockConfigService) GetString(ctx context.Context, key string, defaultValue string) string {
	return defaultValue
}

func (m *MockConfigService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	return defaultValue
}

func (m *MockConfigService) GetFloat64(ctx context.Context, key string, defaultValue float64) float64 {
	return defaultValue
}

func (m *MockConfigService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	return defaultValue
}

func (m *MockConfigService) Load(ctx context.Context) error {
	return nil
}

func (m *MockConfigService) SubscribeToChanges(ctx context.Context) error {
	return nil
}

func (m *MockConfigService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	return m.Called(ctx, key, value, isPublic).Error(0)
}

func (m *MockConfigService) GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	return nil, nil
}
