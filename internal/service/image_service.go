package service

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/http"
	"os"
	"path/filepath"

	"blueroom/internal/config"
	"blueroom/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	DefaultUploadDir         = "uploads"
	DefaultAvatarMaxUploadMB = 5
	AvatarSize               = 256
	BackgroundMaxWidth       = 1920
	BackgroundMaxHeight      = 1080
	BackgroundMaxUploadMB    = 10
	WebPQuality              = 75
	maxDecodedImageDimension = 8192
	avatarDir                = "avatars"
	backgroundDir            = "backgrounds"
)

// ImageService normalises avatar and room background uploads to WebP.
type ImageService struct {
	uploadDir      string
	maxAvatarBytes int64
}

// NewImageService reads the upload directory and avatar limit from cfg.
func NewImageService(cfg *config.Config) *ImageService {
	s := &ImageService{
		uploadDir:      DefaultUploadDir,
		maxAvatarBytes: DefaultAvatarMaxUploadMB << 20,
	}
	if cfg != nil {
		if cfg.UploadDir != "" {
			s.uploadDir = cfg.UploadDir
		}
		s.maxAvatarBytes = cfg.AvatarMaxUploadBytes()
	}
	return s
}

// UploadDir is the directory served under /uploads.
func (s *ImageService) UploadDir() string {
	return s.uploadDir
}

// SaveAvatar center-crops content to a square, scales it to AvatarSize and
// stores it as WebP. It returns the public URL.
func (s *ImageService) SaveAvatar(userID uint, content []byte) (string, error) {
	src, err := decodeUpload(content, s.maxAvatarBytes)
	if err != nil {
		return "", err
	}
	square := cropSquare(src)
	avatar := resizeToFit(square, AvatarSize, AvatarSize)

	name := fmt.Sprintf("%d-%s.webp", userID, uuid.NewString())
	return s.store(avatarDir, name, avatar)
}

// SaveBackground scales content to fit the background bounds and stores it as WebP.
func (s *ImageService) SaveBackground(content []byte) (string, error) {
	src, err := decodeUpload(content, BackgroundMaxUploadMB<<20)
	if err != nil {
		return "", err
	}
	bg := resizeToFit(src, BackgroundMaxWidth, BackgroundMaxHeight)
	return s.store(backgroundDir, uuid.NewString()+".webp", bg)
}

func (s *ImageService) store(dir, name string, img image.Image) (string, error) {
	encoded, err := encodeWebP(img, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	rel := filepath.ToSlash(filepath.Join(dir, name))
	if err := writeBytesToFile(filepath.Join(s.uploadDir, rel), encoded); err != nil {
		return "", models.NewInternalError(err)
	}
	return "/uploads/" + rel, nil
}

func decodeUpload(content []byte, maxBytes int64) (image.Image, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxBytes>>20))
	}
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return nil, models.NewValidationError("Invalid image type")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if cfg.Width > maxDecodedImageDimension || cfg.Height > maxDecodedImageDimension {
		return nil, models.NewValidationError("Image dimensions too large")
	}

	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	return img, nil
}

func isAllowedImageMIME(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func cropSquare(src image.Image) image.Image {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	if side <= 0 || b.Dx() == b.Dy() {
		return src
	}
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func cleanupFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
