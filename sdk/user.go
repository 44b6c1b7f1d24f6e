package sdk

import "context"

// GetUserInfo gets public info for one user
func (c *Client) GetUserInfo(ctx context.Context, userId string) (*UserInfo, error) {
	params := map[string]string{"user_id": userId}
	var result UserInfo
	if err := c.get(ctx, "/user/info", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUsersOnlineStatus gets online status for a batch of users, used to seed
// the presence map before gateway pushes take over.
func (c *Client) GetUsersOnlineStatus(ctx context.Context, userIds []string) ([]*OnlineStatus, error) {
	req := &GetUsersOnlineStatusRequest{UserIds: userIds}
	var result []*OnlineStatus
	if err := c.post(ctx, "/user/online_status", req, &result); err != nil {
		return nil, err
	}
	return result, nil
}
