package domain

// User 聊天使用者，Conversation / Message 只保存副本，權威資料以 UserDirectory 為準
type User struct {
	ID     string `bson:"_id" json:"id"`
	Name   string `bson:"name" json:"name"`
	Avatar string `bson:"avatar,omitempty" json:"avatar,omitempty"`
	IsMe   bool   `bson:"is_me" json:"isMe"`
}

// UniqueUsers dedup users by id, first occurrence wins
func UniqueUsers(users ...[]User) []User {
	seen := make(map[string]struct{})
	result := make([]User, 0)
	for _, list := range users {
		for _, u := range list {
			if _, ok := seen[u.ID]; ok {
				continue
			}
			seen[u.ID] = struct{}{}
			result = append(result, u)
		}
	}
	return result
}
