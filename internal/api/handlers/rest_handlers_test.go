package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teamhub254/Homeseeker-sub000/internal/api/handlers"
	"github.com/teamhub254/Homeseeker-sub000/internal/api/middleware"
	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

func restRouter(d *apiDeps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{ImageMaxSizeMB: 1}
	properties := handlers.NewRestPropertyHandler(cfg, d.properties, d.storage, d.tasks)
	profiles := handlers.NewRestProfileHandler(cfg, d.profiles, d.storage, d.tasks)
	inquiries := handlers.NewRestInquiryHandler(d.inquiries, d.chats)
	favorites := handlers.NewRestFavoriteHandler(d.favorites)
	objects := handlers.NewRestStorageHandler(d.storage)

	r := gin.New()
	r.GET("/v1/property/search", properties.SearchProperties)
	r.GET("/v1/property/:id", properties.GetPropertyByID)
	r.GET("/v1/profile/:id", profiles.GetProfile)
	r.GET("/v1/storage/:bucket/*key", objects.GetObject)

	authed := r.Group("/v1", middleware.AuthMiddleware(d.sessions))
	authed.POST("/property/:id/image", properties.UploadImage)
	authed.DELETE("/property/:id/image", properties.DeleteImage)
	authed.POST("/me/avatar", profiles.UploadAvatar)
	authed.DELETE("/me/avatar", profiles.DeleteAvatar)
	authed.GET("/me/inquiries", middleware.RequireRole(models.RoleLister), inquiries.ListReceived)
	authed.GET("/inquiry/:id/messages", inquiries.GetMessages)
	authed.GET("/me/favorites/:property_id", favorites.IsFavorite)
	return r
}

func doRequest(r *gin.Engine, method, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func multipartImage(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestRestPropertyHandler_SearchParsesFilters(t *testing.T) {
	d := newApiDeps()
	d.properties.On("SearchProperties", mock.Anything, mock.MatchedBy(func(q services.PropertyQuery) bool {
		return q.City == "Nairobi" && q.ListingType == models.ListingRent &&
			q.MinPrice != nil && *q.MinPrice == 1000 && q.MaxPrice == nil &&
			q.MinBedrooms == 2 && len(q.Statuses) == 2 && q.Statuses[1] == models.PropertyPending &&
			len(q.PropertyTypes) == 1 && q.PropertyTypes[0] == "house" &&
			q.Sort == services.SortPriceAsc && q.Limit == 10 && q.WithCount
	})).Return(&services.SearchResult{Properties: []models.Property{{Title: "A"}}, NextCursor: "abc", Count: func() *int64 { n := int64(7); return &n }()}, nil)

	w := doRequest(restRouter(d), "GET", "/v1/property/search?city=Nairobi&listing_type=rent&min_price=1000&min_bedrooms=2&status=available,pending&property_type=house&sort=price_asc&limit=10&count=exact", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data       []models.Property `json:"data"`
		NextCursor string            `json:"next_cursor"`
		Count      int64             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Equal(t, "abc", body.NextCursor)
	assert.Equal(t, int64(7), body.Count)
}

func TestRestPropertyHandler_SearchRejectsBadNumber(t *testing.T) {
	d := newApiDeps()
	w := doRequest(restRouter(d), "GET", "/v1/property/search?min_price=cheap", nil, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "min_price")
	d.properties.AssertNotCalled(t, "SearchProperties", mock.Anything, mock.Anything)
}

func TestRestPropertyHandler_GetByID(t *testing.T) {
	d := newApiDeps()
	found := &models.Property{ID: utils.NewSixID(), Title: "Loft"}
	missing := utils.NewSixID()
	d.properties.On("FindPropertyByID", mock.Anything, found.ID).Return(found, nil)
	d.properties.On("FindPropertyByID", mock.Anything, missing).Return(nil, mongo.ErrNoDocuments)
	r := restRouter(d)

	w := doRequest(r, "GET", "/v1/property/"+found.ID.String(), nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Loft")

	w = doRequest(r, "GET", "/v1/property/"+missing.String(), nil, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, "GET", "/v1/property/bad", nil, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRestPropertyHandler_UploadImage(t *testing.T) {
	d := newApiDeps()
	ownerID := utils.NewSixID()
	d.signedIn(ownerID, models.RoleLister)
	property := &models.Property{ID: utils.NewSixID(), OwnerID: ownerID}
	d.properties.On("FindPropertyByID", mock.Anything, property.ID).Return(property, nil)
	d.storage.On("Upload", mock.Anything, storage.BucketPropertyImages, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, ownerID.String()+"/"+property.ID.String()+"/") && strings.HasSuffix(key, "_front.jpg")
	}), mock.Anything, int64(4), "image/jpeg").Return(nil).Once()
	d.tasks.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, nil).Once()

	body, ct := multipartImage(t, "front.jpg", "image/jpeg", []byte("jpeg"))
	w := doRequest(restRouter(d), "POST", "/v1/property/"+property.ID.String()+"/image", body, ct, goodToken)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	d.storage.AssertExpectations(t)
	d.tasks.AssertExpectations(t)
}

func TestRestPropertyHandler_UploadImage_Rejections(t *testing.T) {
	d := newApiDeps()
	userID := utils.NewSixID()
	d.signedIn(userID, models.RoleLister)
	mine := &models.Property{ID: utils.NewSixID(), OwnerID: userID}
	theirs := &models.Property{ID: utils.NewSixID(), OwnerID: utils.NewSixID()}
	d.properties.On("FindPropertyByID", mock.Anything, mine.ID).Return(mine, nil)
	d.properties.On("FindPropertyByID", mock.Anything, theirs.ID).Return(theirs, nil)
	r := restRouter(d)

	body, ct := multipartImage(t, "a.jpg", "image/jpeg", []byte("jpeg"))
	w := doRequest(r, "POST", "/v1/property/"+theirs.ID.String()+"/image", body, ct, goodToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	body, ct = multipartImage(t, "notes.txt", "text/plain", []byte("hi"))
	w = doRequest(r, "POST", "/v1/property/"+mine.ID.String()+"/image", body, ct, goodToken)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	body, ct = multipartImage(t, "big.jpg", "image/jpeg", make([]byte, 1024*1024+1))
	w = doRequest(r, "POST", "/v1/property/"+mine.ID.String()+"/image", body, ct, goodToken)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = doRequest(r, "POST", "/v1/property/"+mine.ID.String()+"/image", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	d.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRestPropertyHandler_DeleteImage(t *testing.T) {
	d := newApiDeps()
	ownerID := utils.NewSixID()
	d.signedIn(ownerID, models.RoleLister)
	propertyID := utils.NewSixID()
	d.properties.On("RemoveImage", mock.Anything, propertyID, ownerID, "k/1.jpg").Return(nil).Once()
	d.storage.On("Delete", mock.Anything, storage.BucketPropertyImages, "k/1.jpg").Return(errors.New("s3 hiccup")).Once()

	w := doRequest(restRouter(d), "DELETE", "/v1/property/"+propertyID.String()+"/image?key=k/1.jpg", nil, "", goodToken)
	assert.Equal(t, http.StatusNoContent, w.Code)
	d.properties.AssertExpectations(t)
	d.storage.AssertExpectations(t)
}

func TestRestProfileHandler_Avatar(t *testing.T) {
	d := newApiDeps()
	userID := utils.NewSixID()
	d.signedIn(userID, models.RoleRenter)
	d.storage.On("Upload", mock.Anything, storage.BucketAvatars, mock.Anything, mock.Anything, int64(3), "image/png").Return(nil).Once()
	d.profiles.On("SetAvatar", mock.Anything, userID, mock.Anything, mock.Anything).Return("old/avatar.png", nil).Once()
	d.storage.On("Delete", mock.Anything, storage.BucketAvatars, "old/avatar.png").Return(nil).Once()
	d.tasks.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, nil).Once()
	r := restRouter(d)

	body, ct := multipartImage(t, "me.png", "image/png", []byte("png"))
	w := doRequest(r, "POST", "/v1/me/avatar", body, ct, goodToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "https://cdn.example.com/avatars/"+userID.String()+"/avatar/")

	d.profiles.On("ClearAvatar", mock.Anything, userID).Return("new/avatar.png", nil).Once()
	d.storage.On("Delete", mock.Anything, storage.BucketAvatars, "new/avatar.png").Return(nil).Once()
	w = doRequest(r, "DELETE", "/v1/me/avatar", nil, "", goodToken)
	assert.Equal(t, http.StatusNoContent, w.Code)

	d.profiles.AssertExpectations(t)
	d.storage.AssertExpectations(t)
}

func TestRestProfileHandler_GetProfile(t *testing.T) {
	d := newApiDeps()
	userID := utils.NewSixID()
	d.profiles.On("Get", mock.Anything, userID).Return(&models.Profile{UserID: userID, FirstName: "Ann", AvatarKey: "secret/key"}, nil)

	w := doRequest(restRouter(d), "GET", "/v1/profile/"+userID.String(), nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ann")
	assert.NotContains(t, w.Body.String(), "secret/key")
}

func TestRestInquiryHandler_DashboardRequiresLister(t *testing.T) {
	d := newApiDeps()
	userID := utils.NewSixID()
	d.signedIn(userID, models.RoleRenter)

	w := doRequest(restRouter(d), "GET", "/v1/me/inquiries", nil, "", goodToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	d.inquiries.AssertNotCalled(t, "ListForLister", mock.Anything, mock.Anything)
}

func TestRestInquiryHandler_Dashboard(t *testing.T) {
	d := newApiDeps()
	listerID := utils.NewSixID()
	d.signedIn(listerID, models.RoleLister)
	items := []models.InquiryListItem{{
		Inquiry:     models.Inquiry{ID: utils.NewSixID(), Name: "Jane", Status: models.InquiryNew},
		Property:    &models.PropertySummary{Title: "Loft"},
		UnreadCount: 2,
	}}
	d.inquiries.On("ListForLister", mock.Anything, listerID).Return(items, nil)

	w := doRequest(restRouter(d), "GET", "/v1/me/inquiries", nil, "", goodToken)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []models.InquiryListItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, 2, body.Data[0].UnreadCount)
	assert.Equal(t, "Loft", body.Data[0].Property.Title)
}

func TestRestInquiryHandler_MessagesForbidden(t *testing.T) {
	d := newApiDeps()
	userID := utils.NewSixID()
	d.signedIn(userID, models.RoleRenter)
	inquiryID := utils.NewSixID()
	d.chats.On("GetThread", mock.Anything, inquiryID, userID).Return(nil, services.ErrForbidden)

	w := doRequest(restRouter(d), "GET", "/v1/inquiry/"+inquiryID.String()+"/messages", nil, "", goodToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	d.chats.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestRestFavoriteHandler_IsFavorite(t *testing.T) {
	d := newApiDeps()
	userID := utils.NewSixID()
	d.signedIn(userID, models.RoleRenter)
	propertyID := utils.NewSixID()
	d.favorites.On("IsFavorite", mock.Anything, userID, propertyID).Return(true, nil)

	w := doRequest(restRouter(d), "GET", "/v1/me/favorites/"+propertyID.String(), nil, "", goodToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"favorite":true`)
}

func TestRestStorageHandler_GetObject(t *testing.T) {
	d := newApiDeps()
	d.storage.On("Download", mock.Anything, storage.BucketAvatars, "u/avatar/x.png").
		Return(&storage.Object{Body: io.NopCloser(strings.NewReader("PNG")), ContentType: "image/png", Size: 3}, nil)
	d.storage.On("Download", mock.Anything, storage.BucketAvatars, "u/avatar/missing.png").Return(nil, storage.ErrObjectNotFound)
	r := restRouter(d)

	w := doRequest(r, "GET", "/v1/storage/avatars/u/avatar/x.png", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PNG", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = doRequest(r, "GET", "/v1/storage/avatars/u/avatar/missing.png", nil, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, "GET", "/v1/storage/secrets/x", nil, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestConfigHandler_GetPublicConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	configSvc := new(MockConfigService)
	configSvc.On("GetAllPublic", mock.Anything).Return(map[string]interface{}{"app_name": "Homeseeker"}, nil)
	h := handlers.NewRestConfigHandler(configSvc)
	r := gin.New()
	r.GET("/v1/config", h.GetPublicConfig)

	w := doRequest(r, "GET", "/v1/config", nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"app_name":"Homeseeker"}`, w.Body.String())
}
