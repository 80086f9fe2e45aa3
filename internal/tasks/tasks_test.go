package tasks_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/email"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
	"github.com/teamhub254/Homeseeker-sub000/internal/tasks"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

type MockEmailTemplateService struct {
	mock.Mock
}

func (m *MockEmailTemplateService) GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	args := m.Called(ctx, templateID, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

type MockInquiries struct {
	mock.Mock
}

func (m *MockInquiries) MarkNotificationSent(ctx context.Context, inquiryID utils.SixID) error {
	return m.Called(ctx, inquiryID).Error(0)
}

type MockProperties struct {
	mock.Mock
}

func (m *MockProperties) AddImage(ctx context.Context, propertyID utils.SixID, img models.PropertyImage) error {
	return m.Called(ctx, propertyID, img).Error(0)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	return &asynq.TaskInfo{}, args.Error(0)
}

type memoryObject struct {
	data        []byte
	contentType string
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	deleted []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string]memoryObject{}}
}

func (s *memoryStorage) Upload(_ context.Context, bucket, key string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (s *memoryStorage) Download(_ context.Context, bucket, key string) (*storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.Object{Body: io.NopCloser(bytes.NewReader(obj.data)), ContentType: obj.contentType, Size: int64(len(obj.data))}, nil
}

func (s *memoryStorage) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+key)
	s.deleted = append(s.deleted, bucket+"/"+key)
	return nil
}

func (s *memoryStorage) PublicURL(bucket, key string) string {
	return "https://cdn.example.com/" + bucket + "/" + key
}

func (s *memoryStorage) GeneratePresignedPutURL(context.Context, string, string, string) (string, error) {
	return "", storage.ErrPresignUnsupported
}

func emailTask(t *testing.T, payload tasks.EmailTaskPayload) *asynq.Task {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeEmailDelivery, data)
}

func TestHandleEmailDeliveryTask_RendersAndMarksInquiry(t *testing.T) {
	sender := new(MockEmailSender)
	templates := new(MockEmailTemplateService)
	inquiries := new(MockInquiries)
	cfg := &config.Config{SmtpFromAddress: "noreply@homes.example.com", DefaultLocale: "en-US", AppName: "Homeseeker", PublicBaseURL: "https://homes.example.com"}
	p := tasks.NewTaskProcessor(cfg, sender, nil, nil, inquiries, templates)

	inquiryID := utils.NewSixID()
	templates.On("GetTemplate", mock.Anything, models.TemplateNewInquiry, "en-US").Return(&models.EmailTemplate{
		Subject: "New inquiry about {{.property_title}}",
		Body:    "{{.name}} wrote: {{.message}}\n{{.base_url}}/dashboard",
	}, nil)
	sender.On("Send", mock.Anything, []string{"owner@example.com"}, "New inquiry about Sunny Loft",
		mock.MatchedBy(func(raw []byte) bool {
			header, body, err := email.ParseHeaders(raw)
			return err == nil &&
				header.Get("From") == "noreply@homes.example.com" &&
				header.Get(email.TemplateIDHeader) == models.TemplateNewInquiry &&
				strings.Contains(body, "Jane wrote: Interested") &&
				strings.Contains(body, "https://homes.example.com/dashboard")
		})).Return(nil)
	inquiries.On("MarkNotificationSent", mock.Anything, inquiryID).Return(nil)

	err := p.HandleEmailDeliveryTask(context.Background(), emailTask(t, tasks.EmailTaskPayload{
		To:         "owner@example.com",
		TemplateID: models.TemplateNewInquiry,
		Data:       map[string]string{"property_title": "Sunny Loft", "name": "Jane", "message": "Interested"},
		InquiryID:  inquiryID.String(),
	}))

	require.NoError(t, err)
	sender.AssertExpectations(t)
	templates.AssertExpectations(t)
	inquiries.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_PermanentFailures(t *testing.T) {
	sender := new(MockEmailSender)
	templates := new(MockEmailTemplateService)
	p := tasks.NewTaskProcessor(&config.Config{}, sender, nil, nil, nil, templates)

	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.HandleEmailDeliveryTask(context.Background(), emailTask(t, tasks.EmailTaskPayload{To: "not-an-email", TemplateID: "x"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	templates.On("GetTemplate", mock.Anything, "missing", "en-US").Return(nil, errors.New("template not found"))
	err = p.HandleEmailDeliveryTask(context.Background(), emailTask(t, tasks.EmailTaskPayload{To: "a@example.com", TemplateID: "missing"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	sender.AssertNotCalled(t, "Send")
}

func TestHandleEmailDeliveryTask_SendFailureRetries(t *testing.T) {
	sender := new(MockEmailSender)
	templates := new(MockEmailTemplateService)
	p := tasks.NewTaskProcessor(&config.Config{DefaultLocale: "en-US"}, sender, nil, nil, nil, templates)

	templates.On("GetTemplate", mock.Anything, "welcome", "en-US").Return(&models.EmailTemplate{Subject: "Hi", Body: "Hello"}, nil)
	sender.On("Send", mock.Anything, mock.Anything, "Hi", mock.Anything).Return(errors.New("smtp down"))

	err := p.HandleEmailDeliveryTask(context.Background(), emailTask(t, tasks.EmailTaskPayload{To: "a@example.com", TemplateID: "welcome"}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func encodePNG(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageTask(t *testing.T, payload tasks.ImageTaskPayload) *asynq.Task {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeImageProcess, data)
}

func TestHandleImageProcessTask_ResizesAndAttaches(t *testing.T) {
	store := newMemoryStorage()
	properties := new(MockProperties)
	cfg := &config.Config{ImageMaxDimension: 40, AvatarMaxDimension: 10, ImageMaxSizeMB: 1}
	p := tasks.NewTaskProcessor(cfg, nil, store, properties, nil, nil)

	propertyID := utils.NewSixID()
	key := "owner/images/photo.png"
	require.NoError(t, store.Upload(context.Background(), storage.BucketPropertyImages, key, bytes.NewReader(encodePNG(t, 100, 50)), 0, "image/png"))
	properties.On("AddImage", mock.Anything, propertyID, models.PropertyImage{
		Key: key,
		URL: "https://cdn.example.com/property-images/" + key,
	}).Return(nil)

	err := p.HandleImageProcessTask(context.Background(), imageTask(t, tasks.ImageTaskPayload{
		Bucket: storage.BucketPropertyImages, Key: key, PropertyID: propertyID.String(),
	}))
	require.NoError(t, err)
	properties.AssertExpectations(t)

	obj := store.objects[storage.BucketPropertyImages+"/"+key]
	assert.Equal(t, "image/jpeg", obj.contentType)
	decoded, err := jpeg.Decode(bytes.NewReader(obj.data))
	require.NoError(t, err)
	assert.Equal(t, 40, decoded.Bounds().Dx())
	assert.Equal(t, 20, decoded.Bounds().Dy())
}

func TestHandleImageProcessTask_AvatarWithinBoundsUntouched(t *testing.T) {
	store := newMemoryStorage()
	cfg := &config.Config{ImageMaxDimension: 40, AvatarMaxDimension: 10, ImageMaxSizeMB: 1}
	p := tasks.NewTaskProcessor(cfg, nil, store, nil, nil, nil)

	original := encodePNG(t, 8, 8)
	key := "owner/avatar/me.png"
	require.NoError(t, store.Upload(context.Background(), storage.BucketAvatars, key, bytes.NewReader(original), 0, "image/png"))

	require.NoError(t, p.HandleImageProcessTask(context.Background(), imageTask(t, tasks.ImageTaskPayload{Bucket: storage.BucketAvatars, Key: key})))
	obj := store.objects[storage.BucketAvatars+"/"+key]
	assert.Equal(t, original, obj.data)
	assert.Equal(t, "image/png", obj.contentType)
}

func TestHandleImageProcessTask_RejectsBadInput(t *testing.T) {
	store := newMemoryStorage()
	cfg := &config.Config{ImageMaxDimension: 40, ImageMaxSizeMB: 1}
	p := tasks.NewTaskProcessor(cfg, nil, store, nil, nil, nil)
	ctx := context.Background()

	err := p.HandleImageProcessTask(ctx, imageTask(t, tasks.ImageTaskPayload{Bucket: "elsewhere", Key: "k"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.HandleImageProcessTask(ctx, imageTask(t, tasks.ImageTaskPayload{Bucket: storage.BucketPropertyImages, Key: "missing"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	require.NoError(t, store.Upload(ctx, storage.BucketPropertyImages, "notes.txt", strings.NewReader("just text"), 0, "text/plain"))
	err = p.HandleImageProcessTask(ctx, imageTask(t, tasks.ImageTaskPayload{Bucket: storage.BucketPropertyImages, Key: "notes.txt"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, store.deleted, storage.BucketPropertyImages+"/notes.txt")

	big := bytes.Repeat([]byte{0xff}, 1024*1024+1)
	require.NoError(t, store.Upload(ctx, storage.BucketPropertyImages, "big.jpg", bytes.NewReader(big), 0, "image/jpeg"))
	err = p.HandleImageProcessTask(ctx, imageTask(t, tasks.ImageTaskPayload{Bucket: storage.BucketPropertyImages, Key: "big.jpg"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestEnqueueHelpers(t *testing.T) {
	client := new(MockEnqueuer)
	client.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == tasks.TypeEmailDelivery
	}), mock.Anything).Return(nil).Once()
	client.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == tasks.TypeImageProcess
	}), mock.Anything).Return(errors.New("redis down")).Once()

	require.NoError(t, tasks.EnqueueEmail(context.Background(), client, tasks.EmailTaskPayload{To: "a@example.com", TemplateID: "welcome"}))
	assert.ErrorContains(t, tasks.EnqueueImage(context.Background(), client, tasks.ImageTaskPayload{Bucket: "avatars", Key: "k"}), "redis down")
	client.AssertExpectations(t)
}
