package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/myeljoud/lireddit-server/internal/models"
	"github.com/myeljoud/lireddit-server/internal/votes"
)

const (
	defaultPostsLimit = 20
	maxPostsLimit     = 50
	snippetLength     = 50
)

type PostHandler struct {
	db     *gorm.DB
	votes  *votes.Service
	logger *zap.Logger
}

func NewPostHandler(db *gorm.DB, voteService *votes.Service, logger *zap.Logger) *PostHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostHandler{db: db, votes: voteService, logger: logger}
}

func bodySnippet(body string) string {
	if len(body) > snippetLength {
		return body[:snippetLength] + "..."
	}
	return body
}

func postResponse(post models.Post) gin.H {
	return gin.H{
		"id":           post.ID,
		"title":        post.Title,
		"body":         post.Body,
		"body_snippet": bodySnippet(post.Body),
		"points":       post.Points,
		"author_id":    post.AuthorID,
		"author": gin.H{
			"id":       post.Author.ID,
			"username": post.Author.Username,
		},
		"created_at": post.CreatedAt,
		"updated_at": post.UpdatedAt,
	}
}

// voteStatuses returns the signed-in viewer's vote per post. Anonymous
// viewers get nil, which renders every post's vote_status as null.
func (h *PostHandler) voteStatuses(c *gin.Context, posts []models.Post) map[int]int {
	userID, ok := extractUserID(c)
	if !ok {
		return nil
	}

	ids := make([]int, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}

	statuses, err := h.votes.Statuses(c.Request.Context(), userID, ids)
	if err != nil {
		// Personalization is best effort; the posts themselves still go out.
		h.logger.Warn("failed to load vote statuses", zap.Int("user_id", userID), zap.Error(err))
		return nil
	}
	return statuses
}

func voteStatusValue(statuses map[int]int, postID int) interface{} {
	if value, ok := statuses[postID]; ok {
		return value
	}
	return nil
}

// GetPosts returns a page of posts, newest first. The cursor is the
// created_at of the last post of the previous page as unix
// milliseconds; one extra row is fetched to know whether more remain.
func (h *PostHandler) GetPosts(c *gin.Context) {
	limit := defaultPostsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	if limit > maxPostsLimit {
		limit = maxPostsLimit
	}

	query := h.db.Preload("Author").Order("created_at desc").Limit(limit + 1)

	if raw := c.Query("cursor"); raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
			return
		}
		query = query.Where("created_at < ?", time.UnixMilli(millis).UTC())
	}

	var posts []models.Post
	if err := query.Find(&posts).Error; err != nil {
		h.logger.Error("failed to fetch posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}

	statuses := h.voteStatuses(c, posts)

	// If no posts, return empty array not null
	responses := []gin.H{}
	for _, post := range posts {
		resp := postResponse(post)
		resp["vote_status"] = voteStatusValue(statuses, post.ID)
		responses = append(responses, resp)
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":    responses,
		"has_more": hasMore,
	})
}

// GetPost returns a single post by ID
func (h *PostHandler) GetPost(c *gin.Context) {
	postID := c.Param("id")
	var post models.Post

	if err := h.db.Preload("Author").First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	statuses := h.voteStatuses(c, []models.Post{post})

	resp := postResponse(post)
	resp["vote_status"] = voteStatusValue(statuses, post.ID)
	c.JSON(http.StatusOK, resp)
}

// CreatePost creates a new post (PROTECTED - requires authentication)
func (h *PostHandler) CreatePost(c *gin.Context) {
	var input models.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Title == "" {
		c.JSON(http.StatusBadRequest, fieldErrors("title", "Title is required"))
		return
	}
	if len(input.Title) <= 5 {
		c.JSON(http.StatusBadRequest, fieldErrors("title", "Title length must be greater than 5"))
		return
	}
	if input.Body == "" {
		c.JSON(http.StatusBadRequest, fieldErrors("body", "Body is required"))
		return
	}
	if len(input.Body) <= 10 {
		c.JSON(http.StatusBadRequest, fieldErrors("body", "Body length must be greater than 10"))
		return
	}

	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	post := models.Post{
		Title:    input.Title,
		Body:     input.Body,
		AuthorID: userID,
	}

	if err := h.db.Create(&post).Error; err != nil {
		h.logger.Error("failed to create post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	// Reload with author information
	h.db.Preload("Author").First(&post, post.ID)

	c.JSON(http.StatusCreated, postResponse(post))
}

// UpdatePost updates an existing post (PROTECTED - requires ownership)
func (h *PostHandler) UpdatePost(c *gin.Context) {
	postID := c.Param("id")

	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var post models.Post
	if err := h.db.First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	if post.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only edit your own posts"})
		return
	}

	if input.Title != "" {
		post.Title = input.Title
	}
	if input.Body != "" {
		post.Body = input.Body
	}

	if err := h.db.Save(&post).Error; err != nil {
		h.logger.Error("failed to update post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
		return
	}
	h.db.Preload("Author").First(&post, post.ID)

	c.JSON(http.StatusOK, postResponse(post))
}

// DeletePost deletes a post (PROTECTED - requires ownership)
func (h *PostHandler) DeletePost(c *gin.Context) {
	postID := c.Param("id")

	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var post models.Post
	if err := h.db.First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	if post.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own posts"})
		return
	}

	if err := h.db.Delete(&post).Error; err != nil {
		h.logger.Error("failed to delete post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// VotePost handles upvoting/downvoting a post (PROTECTED - requires
// authentication). The heavy lifting lives in the votes service; this
// handler only translates its error taxonomy to HTTP. Store-level
// detail stays in the logs.
func (h *PostHandler) VotePost(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		Value int `json:"value"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote value is required"})
		return
	}

	err = h.votes.CastVote(c.Request.Context(), userID, postID, input.Value)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, votes.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	case errors.Is(err, votes.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
	case errors.Is(err, votes.ErrInvalidValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote value must be positive or negative"})
	default:
		h.logger.Error("vote failed",
			zap.Int("user_id", userID),
			zap.Int("post_id", postID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to vote"})
	}
}
