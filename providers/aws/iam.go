package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/stratus-ops/stratus/types"
)

// ListUsers returns all IAM users.
func (a *Adapter) ListUsers(ctx context.Context) ([]types.User, error) {
	var users []types.User
	var marker *string

	for {
		output, err := a.iamClient.ListUsers(ctx, &iam.ListUsersInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}

		for _, user := range output.Users {
			if converted, ok := convertUser(user); ok {
				users = append(users, converted)
			}
		}

		if !output.IsTruncated {
			break
		}
		marker = output.Marker
	}

	return users, nil
}

// GetUser returns the IAM user bound to the active credentials.
func (a *Adapter) GetUser(ctx context.Context) (*types.User, error) {
	output, err := a.iamClient.GetUser(ctx, &iam.GetUserInput{})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if output.User == nil {
		return nil, nil
	}
	if converted, ok := convertUser(*output.User); ok {
		return &converted, nil
	}
	return nil, nil
}

func convertUser(user iamtypes.User) (types.User, bool) {
	if user.UserName == nil || user.UserId == nil {
		return types.User{}, false
	}
	tags := make(map[string]string, len(user.Tags))
	for _, tag := range user.Tags {
		tags[awssdk.ToString(tag.Key)] = awssdk.ToString(tag.Value)
	}
	return types.User{
		ARN:       awssdk.ToString(user.Arn),
		CreatedAt: awssdk.ToTime(user.CreateDate),
		ID:        awssdk.ToString(user.UserId),
		Name:      awssdk.ToString(user.UserName),
		Tags:      tags,
	}, true
}

// ListGroups returns all IAM groups.
func (a *Adapter) ListGroups(ctx context.Context) ([]types.Group, error) {
	var groups []types.Group
	var marker *string

	for {
		output, err := a.iamClient.ListGroups(ctx, &iam.ListGroupsInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}

		for _, group := range output.Groups {
			if group.GroupName == nil || group.GroupId == nil {
				continue
			}
			groups = append(groups, types.Group{
				ARN:       awssdk.ToString(group.Arn),
				CreatedAt: awssdk.ToTime(group.CreateDate),
				ID:        awssdk.ToString(group.GroupId),
				Name:      awssdk.ToString(group.GroupName),
			})
		}

		if !output.IsTruncated {
			break
		}
		marker = output.Marker
	}

	return groups, nil
}

// ListGroupsForUser returns the groups a user belongs to.
func (a *Adapter) ListGroupsForUser(ctx context.Context, userName string) ([]types.Group, error) {
	output, err := a.iamClient.ListGroupsForUser(ctx, &iam.ListGroupsForUserInput{
		UserName: awssdk.String(userName),
	})
	if err != nil {
		return nil, fmt.Errorf("list groups for user %s: %w", userName, err)
	}

	var groups []types.Group
	for _, group := range output.Groups {
		if group.GroupName == nil {
			continue
		}
		groups = append(groups, types.Group{
			ARN:       awssdk.ToString(group.Arn),
			CreatedAt: awssdk.ToTime(group.CreateDate),
			ID:        awssdk.ToString(group.GroupId),
			Name:      awssdk.ToString(group.GroupName),
		})
	}
	return groups, nil
}

// CreateUser creates an IAM user.
func (a *Adapter) CreateUser(ctx context.Context, userName string) (*types.User, error) {
	output, err := a.iamClient.CreateUser(ctx, &iam.CreateUserInput{UserName: awssdk.String(userName)})
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", userName, err)
	}
	if output.User == nil {
		return nil, nil
	}
	if converted, ok := convertUser(*output.User); ok {
		return &converted, nil
	}
	return nil, nil
}

// DeleteUser removes an IAM user.
func (a *Adapter) DeleteUser(ctx context.Context, userName string) error {
	_, err := a.iamClient.DeleteUser(ctx, &iam.DeleteUserInput{UserName: awssdk.String(userName)})
	if err != nil {
		return fmt.Errorf("delete user %s: %w", userName, err)
	}
	return nil
}

// AddUserToGroup adds a user to a group.
func (a *Adapter) AddUserToGroup(ctx context.Context, userName, groupName string) error {
	_, err := a.iamClient.AddUserToGroup(ctx, &iam.AddUserToGroupInput{
		UserName:  awssdk.String(userName),
		GroupName: awssdk.String(groupName),
	})
	if err != nil {
		return fmt.Errorf("add user %s to group %s: %w", userName, groupName, err)
	}
	return nil
}

// RemoveUserFromGroup removes a user from a group.
func (a *Adapter) RemoveUserFromGroup(ctx context.Context, userName, groupName string) error {
	_, err := a.iamClient.RemoveUserFromGroup(ctx, &iam.RemoveUserFromGroupInput{
		UserName:  awssdk.String(userName),
		GroupName: awssdk.String(groupName),
	})
	if err != nil {
		return fmt.Errorf("remove user %s from group %s: %w", userName, groupName, err)
	}
	return nil
}

// ListAccessKeys returns access-key metadata; the provider caps keys at
// two per user.
func (a *Adapter) ListAccessKeys(ctx context.Context, userName string) ([]types.AccessKeyMetadata, error) {
	input := &iam.ListAccessKeysInput{}
	if userName != "" {
		input.UserName = awssdk.String(userName)
	}

	output, err := a.iamClient.ListAccessKeys(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("list access keys: %w", err)
	}

	var keys []types.AccessKeyMetadata
	for _, key := range output.AccessKeyMetadata {
		if key.AccessKeyId == nil {
			continue
		}
		keys = append(keys, types.AccessKeyMetadata{
			ID:        awssdk.ToString(key.AccessKeyId),
			UserName:  awssdk.ToString(key.UserName),
			Status:    string(key.Status),
			CreatedAt: awssdk.ToTime(key.CreateDate),
		})
	}
	return keys, nil
}

// CreateAccessKey mints a new access key. The secret appears here and
// never again.
func (a *Adapter) CreateAccessKey(ctx context.Context, userName string) (*types.AccessKey, error) {
	output, err := a.iamClient.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{
		UserName: awssdk.String(userName),
	})
	if err != nil {
		return nil, fmt.Errorf("create access key for %s: %w", userName, err)
	}
	if output.AccessKey == nil {
		return nil, nil
	}

	key := output.AccessKey
	return &types.AccessKey{
		ID:        awssdk.ToString(key.AccessKeyId),
		UserName:  awssdk.ToString(key.UserName),
		CreatedAt: awssdk.ToTime(key.CreateDate),
		Secret:    awssdk.ToString(key.SecretAccessKey),
		Status:    string(key.Status),
	}, nil
}

// DeleteAccessKey removes an access key.
func (a *Adapter) DeleteAccessKey(ctx context.Context, userName, keyID string) error {
	_, err := a.iamClient.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
		UserName:    awssdk.String(userName),
		AccessKeyId: awssdk.String(keyID),
	})
	if err != nil {
		return fmt.Errorf("delete access key %s: %w", keyID, err)
	}
	return nil
}
