package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/stratus-ops/stratus/types"
)

// ListRepositoryImages returns every pushed image across all container
// repositories.
func (a *Adapter) ListRepositoryImages(ctx context.Context) ([]types.RepositoryImage, error) {
	repos, err := a.listRepositories(ctx)
	if err != nil {
		return nil, err
	}

	var images []types.RepositoryImage
	for _, repo := range repos {
		repoImages, err := a.listImagesInRepository(ctx, repo)
		if err != nil {
			return nil, err
		}
		images = append(images, repoImages...)
	}
	return images, nil
}

func (a *Adapter) listRepositories(ctx context.Context) ([]string, error) {
	var repos []string
	var nextToken *string

	for {
		output, err := a.ecrClient.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe repositories: %w", err)
		}
		for _, repo := range output.Repositories {
			if repo.RepositoryName != nil {
				repos = append(repos, awssdk.ToString(repo.RepositoryName))
			}
		}
		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return repos, nil
}

func (a *Adapter) listImagesInRepository(ctx context.Context, repo string) ([]types.RepositoryImage, error) {
	var images []types.RepositoryImage
	var nextToken *string

	for {
		output, err := a.ecrClient.DescribeImages(ctx, &ecr.DescribeImagesInput{
			RepositoryName: awssdk.String(repo),
			NextToken:      nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("describe images in %s: %w", repo, err)
		}

		for _, detail := range output.ImageDetails {
			if detail.ImageDigest == nil || detail.ImagePushedAt == nil {
				continue
			}
			images = append(images, types.RepositoryImage{
				Repository: repo,
				Digest:     awssdk.ToString(detail.ImageDigest),
				Tags:       detail.ImageTags,
				PushedAt:   detail.ImagePushedAt.UTC(),
				SizeBytes:  awssdk.ToInt64(detail.ImageSizeInBytes),
			})
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return images, nil
}

// DeleteRepositoryImages deletes images by digest from one repository.
func (a *Adapter) DeleteRepositoryImages(ctx context.Context, repo string, digests []string) error {
	if len(digests) == 0 {
		return nil
	}

	ids := make([]ecrtypes.ImageIdentifier, 0, len(digests))
	for _, digest := range digests {
		ids = append(ids, ecrtypes.ImageIdentifier{ImageDigest: awssdk.String(digest)})
	}

	_, err := a.ecrClient.BatchDeleteImage(ctx, &ecr.BatchDeleteImageInput{
		RepositoryName: awssdk.String(repo),
		ImageIds:       ids,
	})
	if err != nil {
		return fmt.Errorf("batch delete images in %s: %w", repo, err)
	}
	return nil
}
