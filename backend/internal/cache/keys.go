package cache

import "fmt"

// 键语义：
// - roomKey(docID):     房间在线成员（ZSet<userId, expireAtUnix>，score=expireAt）
// - namesKey(docID):    房间内 userId→username 映射（Hash）
// - snapshotKey(docID): 最新文档快照（String，go-json 编码；"-1" 为空值标记）
//
// {docID:...} 是 hash tag，同一文档的键落在同一个集群槽位，lua 脚本可以同时操作。
const (
	keyRoomFmt     = "collab:room:{docID:%s}"
	keyNamesFmt    = "collab:room:names:{docID:%s}"
	keySnapshotFmt = "collab:snapshot:{docID:%s}"
)

func roomKey(docID string) string     { return fmt.Sprintf(keyRoomFmt, docID) }
func namesKey(docID string) string    { return fmt.Sprintf(keyNamesFmt, docID) }
func snapshotKey(docID string) string { return fmt.Sprintf(keySnapshotFmt, docID) }
