package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/email"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

const (
	TypeEmailDelivery = "email:deliver"
	TypeImageProcess  = "image:process"
)

// Queue names and their asynq priorities.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
	QueueImages   = "images"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func redisClientOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
}

// NewClient returns an asynq client on the same Redis as rdb.
func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisClientOpt(rdb))
}

// EmailTaskPayload asks for one templated email. InquiryID, when set, is
// marked notification_sent after delivery.
type EmailTaskPayload struct {
	To         string            `json:"to"`
	TemplateID string            `json:"template_id"`
	Locale     string            `json:"locale,omitempty"`
	Data       map[string]string `json:"data"`
	InquiryID  string            `json:"inquiry_id,omitempty"`
}

// ImageTaskPayload asks for an uploaded image to be normalized in place.
// PropertyID, when set, gets the image appended once it is ready.
type ImageTaskPayload struct {
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	PropertyID string `json:"property_id,omitempty"`
}

// EnqueueEmail queues an email on the critical queue.
func EnqueueEmail(ctx context.Context, client Enqueuer, payload EmailTaskPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode email task: %w", err)
	}
	if _, err := client.EnqueueContext(ctx, asynq.NewTask(TypeEmailDelivery, data), asynq.Queue(QueueCritical), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("failed to enqueue email task: %w", err)
	}
	return nil
}

// EnqueueImage queues an image on the images queue.
func EnqueueImage(ctx context.Context, client Enqueuer, payload ImageTaskPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode image task: %w", err)
	}
	if _, err := client.EnqueueContext(ctx, asynq.NewTask(TypeImageProcess, data), asynq.Queue(QueueImages), asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("failed to enqueue image task: %w", err)
	}
	return nil
}

// PropertyImages receives processed property images.
type PropertyImages interface {
	AddImage(ctx context.Context, propertyID utils.SixID, image models.PropertyImage) error
}

// InquiryNotifications records delivered inquiry emails.
type InquiryNotifications interface {
	MarkNotificationSent(ctx context.Context, inquiryID utils.SixID) error
}

// TaskProcessor holds what the task handlers need.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	storage     storage.IObjectStorage
	properties  PropertyImages
	inquiries   InquiryNotifications
	templates   services.IEmailTemplateService
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	objectStorage storage.IObjectStorage,
	properties PropertyImages,
	inquiries InquiryNotifications,
	templates services.IEmailTemplateService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
		storage:     objectStorage,
		properties:  properties,
		inquiries:   inquiries,
		templates:   templates,
	}
}

// SetupServer builds the asynq server and mux for the given worker roles.
// It returns nil when neither role is enabled. The caller runs the server.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		return nil, nil
	}

	queues := map[string]int{}
	mux := asynq.NewServeMux()
	if isBgWorker {
		queues[QueueCritical] = 6
		queues[QueueDefault] = 3
		queues[QueueLow] = 1
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		log.Println("Registered background task handlers.")
	}
	if isImageWorker {
		queues[QueueImages] = 5
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handlers.")
	}

	srv := asynq.NewServer(redisClientOpt(rdb), asynq.Config{
		Queues: queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), task.Payload(), err)
		}),
	})
	return srv, mux
}

// HandleEmailDeliveryTask renders the template and sends the message.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if !models.IsValidEmail(payload.To) {
		return fmt.Errorf("invalid recipient %q: %w", payload.To, asynq.SkipRetry)
	}

	locale := payload.Locale
	if locale == "" {
		locale = p.cfg.DefaultLocale
	}
	if locale == "" {
		locale = "en-US"
	}

	tmpl, err := p.templates.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting email template %s/%s: %v", payload.TemplateID, locale, err)
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	data := map[string]string{"app_name": p.cfg.AppName, "base_url": p.cfg.PublicBaseURL}
	for k, v := range payload.Data {
		data[k] = v
	}
	subject, err := email.Render(payload.TemplateID+".subject", tmpl.Subject, data)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	body, err := email.Render(payload.TemplateID+".body", tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	from := p.cfg.SmtpFromAddress
	if from == "" {
		from = "noreply@example.com"
	}
	raw := email.Message{
		From:       from,
		To:         []string{payload.To},
		Subject:    subject,
		Body:       body,
		TemplateID: payload.TemplateID,
	}.Build()

	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, raw); err != nil {
		return fmt.Errorf("email delivery failed: %w", err)
	}
	log.Printf("Email task processed: To=%s, Template=%s", payload.To, payload.TemplateID)

	if payload.InquiryID != "" && p.inquiries != nil {
		inquiryID, err := utils.ParseSixID(payload.InquiryID)
		if err != nil {
			log.Printf("Warning: invalid inquiry id %q in email task: %v", payload.InquiryID, err)
			return nil
		}
		if err := p.inquiries.MarkNotificationSent(ctx, inquiryID); err != nil {
			log.Printf("Warning: failed to mark inquiry %s notified: %v", payload.InquiryID, err)
		}
	}
	return nil
}

// HandleImageProcessTask shrinks an uploaded image to the bucket's maximum
// dimension, re-encodes it as JPEG in place, and attaches it to its property.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}
	if !storage.IsKnownBucket(payload.Bucket) || payload.Key == "" {
		return fmt.Errorf("invalid image target %s/%s: %w", payload.Bucket, payload.Key, asynq.SkipRetry)
	}

	var propertyID utils.SixID
	if payload.PropertyID != "" {
		id, err := utils.ParseSixID(payload.PropertyID)
		if err != nil {
			return fmt.Errorf("invalid property id in payload: %w", asynq.SkipRetry)
		}
		propertyID = id
	}

	obj, err := p.storage.Download(ctx, payload.Bucket, payload.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("image %s/%s not found: %w", payload.Bucket, payload.Key, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image: %w", err)
	}
	maxSize := p.cfg.ImageMaxSizeBytes()
	imgData, err := io.ReadAll(io.LimitReader(obj.Body, maxSize+1))
	obj.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read image data: %w", err)
	}

	if int64(len(imgData)) > maxSize {
		log.Printf("Image %s/%s exceeds max size (%d bytes). Deleting.", payload.Bucket, payload.Key, maxSize)
		p.discard(ctx, payload)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	processed, contentType, err := p.normalize(imgData, p.maxDimension(payload.Bucket))
	if err != nil {
		log.Printf("Rejecting image %s/%s: %v", payload.Bucket, payload.Key, err)
		p.discard(ctx, payload)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if processed != nil {
		if err := p.storage.Upload(ctx, payload.Bucket, payload.Key, bytes.NewReader(processed), int64(len(processed)), contentType); err != nil {
			return fmt.Errorf("failed to upload processed image: %w", err)
		}
	}

	if !propertyID.IsZero() {
		attached := models.PropertyImage{Key: payload.Key, URL: p.storage.PublicURL(payload.Bucket, payload.Key)}
		if err := p.properties.AddImage(ctx, propertyID, attached); err != nil {
			return fmt.Errorf("failed to attach image to property %s: %w", propertyID, err)
		}
	}

	log.Printf("Image task processed: %s/%s", payload.Bucket, payload.Key)
	return nil
}

func (p *TaskProcessor) maxDimension(bucket string) uint {
	if bucket == storage.BucketAvatars && p.cfg.AvatarMaxDimension > 0 {
		return uint(p.cfg.AvatarMaxDimension)
	}
	return uint(p.cfg.ImageMaxDimension)
}

// normalize returns nil data when the image is already within bounds.
func (p *TaskProcessor) normalize(data []byte, maxDim uint) ([]byte, string, error) {
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("not an image (%s)", contentType)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("unsupported image format or corrupt image: %v", err)
	}
	bounds := img.Bounds()
	if uint(bounds.Dx()) <= maxDim && uint(bounds.Dy()) <= maxDim {
		return nil, contentType, nil
	}

	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, "", fmt.Errorf("failed to re-encode resized %s image: %v", format, err)
	}
	if int64(buf.Len()) > p.cfg.ImageMaxSizeBytes() {
		return nil, "", errors.New("resized image still exceeds max size")
	}
	return buf.Bytes(), "image/jpeg", nil
}

func (p *TaskProcessor) discard(ctx context.Context, payload ImageTaskPayload) {
	if err := p.storage.Delete(ctx, payload.Bucket, payload.Key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		log.Printf("Warning: failed to delete rejected image %s/%s: %v", payload.Bucket, payload.Key, err)
	}
}
