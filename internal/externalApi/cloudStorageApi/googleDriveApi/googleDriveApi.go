package googleDriveApi

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/KotFed0t/equal_weight_fund/config"
	"github.com/KotFed0t/equal_weight_fund/utils"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const downloadLinkTemplate = "https://drive.google.com/file/d/%s/view"

const xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// uploaded reports are tagged so cleanup never touches other files of the account
const (
	appPropertyKey   = "app"
	appPropertyValue = "equal_weight_fund"
)

type GoogleDriveApi struct {
	srv     *drive.Service
	fileTTL time.Duration
}

func New(ctx context.Context, cfg *config.Config) (*GoogleDriveApi, error) {
	return newWithOptions(ctx, cfg.GoogleDrive.FileTTL, option.WithCredentialsFile(cfg.GoogleDrive.CredentialsFile))
}

func newWithOptions(ctx context.Context, fileTTL time.Duration, opts ...option.ClientOption) (*GoogleDriveApi, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive.NewService: %w", err)
	}
	return &GoogleDriveApi{srv: srv, fileTTL: fileTTL}, nil
}

// UploadFile uploads the report at path, shares it read-only with anyone and returns the view link.
func (a *GoogleDriveApi) UploadFile(ctx context.Context, path string) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.UploadFile"

	filename := filepath.Base(path)

	slog.Debug("UploadFile start", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename))

	reader, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(filename))
	if mimeType == "" {
		mimeType = xlsxMimeType
	}

	fileMeta := &drive.File{
		Name:     fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102T150405Z"), filename),
		MimeType: mimeType,
		AppProperties: map[string]string{
			appPropertyKey: appPropertyValue,
		},
	}

	uploadedFile, err := a.srv.Files.
		Create(fileMeta).
		Media(reader).
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("failed on uploading file to google drive", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	perm := &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}

	_, err = a.srv.Permissions.Create(uploadedFile.Id, perm).Context(ctx).Do()
	if err != nil {
		slog.Error("failed on creating permission to uploaded file in google drive", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	slog.Debug("UploadFile completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("fileID", uploadedFile.Id))

	return DownloadLink(uploadedFile.Id), nil
}

func DownloadLink(fileID string) string {
	return fmt.Sprintf(downloadLinkTemplate, fileID)
}

// DeleteOldFiles removes uploaded reports older than the configured TTL.
// Only files tagged by UploadFile are listed.
func (a *GoogleDriveApi) DeleteOldFiles(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.DeleteOldFiles"

	slog.Debug("DeleteOldFiles start", slog.String("rqID", rqID), slog.String("op", op))

	deadline := time.Now().Add(-a.fileTTL)
	totalFiles := 0
	deletedFiles := 0

	err := a.srv.Files.List().
		Q(oldReportsQuery(deadline)).
		Fields("nextPageToken, files(id, createdTime)").
		Pages(ctx, func(page *drive.FileList) error {
			totalFiles += len(page.Files)
			for _, f := range page.Files {
				createdTime, err := time.Parse(time.RFC3339, f.CreatedTime)
				if err != nil {
					slog.Error("failed parse time", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()), slog.String("fileID", f.Id))
					continue
				}

				if !IsExpired(createdTime, deadline) {
					continue
				}

				if err := a.srv.Files.Delete(f.Id).Context(ctx).Do(); err != nil {
					slog.Error("failed delete file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()), slog.String("fileID", f.Id))
					continue
				}
				deletedFiles++
			}
			return nil
		})
	if err != nil {
		slog.Error("failed on getting files", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Info("delete old files done", slog.String("rqID", rqID), slog.String("op", op), slog.Int("deletedFiles", deletedFiles), slog.Int("remaining files", totalFiles-deletedFiles))

	return nil
}

func oldReportsQuery(deadline time.Time) string {
	return fmt.Sprintf("appProperties has { key='%s' and value='%s' } and createdTime < '%s' and trashed = false",
		appPropertyKey,
		appPropertyValue,
		deadline.UTC().Format(time.RFC3339),
	)
}

func IsExpired(createdTime, deadline time.Time) bool {
	return createdTime.Before(deadline)
}
