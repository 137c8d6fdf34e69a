package crud

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"odinbook/domain"
	"odinbook/errs"
)

// FriendService manages friend lists and friend requests. It is the friend request
// workflow (send, accept, reject, cancel, unfriend) and the friend state resolver.
// It implements the domain.FriendService interface.
//
// No locks are held in the process. Sending relies on the primary key of the
// friend_requests table as a write-time precondition, accepting and unfriending
// write both directions of a friendship inside one transaction.
type FriendService struct {
	friendValidator
	eventSink
}

// friendValidator runs validations on incoming friend requests.
// On success, it passes the data on to friendGorm.
// Otherwise, it returns the error of the validation that has failed.
type friendValidator struct {
	accounts accountChecker
	friendGorm
}

// friendGorm runs the reads and conditional writes on the friendships and
// friend_requests tables. It assumes that data has been validated.
type friendGorm struct {
	db *gorm.DB
}

// accountChecker tells whether an account exists. UserService implements it.
type accountChecker interface {
	Exists(ctx context.Context, id int) (bool, error)
}

// NewFriendService returns an instance of FriendService.
func NewFriendService(db *gorm.DB, accounts accountChecker, events domain.EventPublisher) *FriendService {
	return &FriendService{
		friendValidator: friendValidator{
			accounts: accounts,
			friendGorm: friendGorm{
				db: db,
			},
		},
		eventSink: eventSink{events: events},
	}
}

// Ensure the FriendService struct properly implements the domain.FriendService interface,
// as well as the interface the account deletion cascade needs.
var _ domain.FriendService = &FriendService{}
var _ domain.RelationPurger = &FriendService{}

// State resolves the relationship of the viewer to the subject. It does not check
// whether either account exists.
func (fs *FriendService) State(ctx context.Context, viewerID, subjectID int) (domain.FriendState, error) {
	states, err := fs.States(ctx, viewerID, []int{subjectID})
	if err != nil {
		return "", err
	}
	return states[subjectID], nil
}

// SendRequest adds a pending request from sender to receiver.
func (fs *FriendService) SendRequest(ctx context.Context, senderID, receiverID int) error {
	req := &domain.FriendRequest{ReceiverID: receiverID, SenderID: senderID}
	err := runRequestValFns(ctx, req,
		fs.notSelfTarget,
		fs.notAlreadyFriend,
		fs.receiverExists)
	if err == nil {
		err = fs.friendGorm.createRequest(ctx, req)
	}
	friendRequestTotal.WithLabelValues("send", resultLabel(err)).Inc()
	return err
}

// AcceptRequest turns the pending request from sender into a friendship and
// notifies the sender.
func (fs *FriendService) AcceptRequest(ctx context.Context, authz domain.Authorization, receiverID, senderID int) error {
	err := authorize(authz, "accept this friend request")
	if err == nil {
		err = fs.friendGorm.acceptRequest(ctx, receiverID, senderID)
	}
	friendRequestTotal.WithLabelValues("accept", resultLabel(err)).Inc()
	if err != nil {
		return err
	}
	fs.publish(ctx, domain.SocialEvent{
		Kind:     domain.FriendRequestAccepted,
		ActorID:  receiverID,
		SenderID: senderID,
	})
	return nil
}

// RejectRequest removes a request the receiver does not want to answer with a friendship.
func (fs *FriendService) RejectRequest(ctx context.Context, authz domain.Authorization, receiverID, senderID int) error {
	err := authorize(authz, "reject this friend request")
	if err == nil {
		err = fs.friendGorm.deleteRequest(ctx, receiverID, senderID)
	}
	friendRequestTotal.WithLabelValues("reject", resultLabel(err)).Inc()
	return err
}

// CancelRequest withdraws a request the sender has sent earlier.
func (fs *FriendService) CancelRequest(ctx context.Context, authz domain.Authorization, senderID, receiverID int) error {
	err := authorize(authz, "cancel this friend request")
	if err == nil {
		err = fs.friendGorm.deleteRequest(ctx, receiverID, senderID)
	}
	friendRequestTotal.WithLabelValues("cancel", resultLabel(err)).Inc()
	return err
}

// Unfriend ends the friendship of both users.
func (fs *FriendService) Unfriend(ctx context.Context, authz domain.Authorization, userID, friendID int) error {
	err := authorize(authz, "remove this friend")
	if err == nil {
		err = fs.friendGorm.deleteFriendship(ctx, userID, friendID)
	}
	friendRequestTotal.WithLabelValues("unfriend", resultLabel(err)).Inc()
	return err
}

// MarkRequestsViewed flags all pending requests of the receiver as viewed.
func (fs *FriendService) MarkRequestsViewed(ctx context.Context, authz domain.Authorization, receiverID int) error {
	if err := authorize(authz, "change these friend requests"); err != nil {
		return err
	}
	return fs.friendGorm.markViewed(ctx, receiverID)
}

// Requests lists the pending requests of the receiver, unviewed ones first.
func (fs *FriendService) Requests(ctx context.Context, authz domain.Authorization, receiverID int) ([]domain.FriendRequest, error) {
	if err := authorize(authz, "see these friend requests"); err != nil {
		return nil, err
	}
	return fs.friendGorm.requests(ctx, receiverID)
}

// Friends lists the friends of a user, each annotated with the viewer's friend state.
func (fs *FriendService) Friends(ctx context.Context, viewerID, userID int) ([]domain.User, error) {
	friends, err := fs.friendGorm.friends(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fs.Annotate(ctx, viewerID, friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// Annotate sets the viewer's friend state on each of the users.
// The viewer's own entry is left blank.
func (fs *FriendService) Annotate(ctx context.Context, viewerID int, users []domain.User) error {
	ids := make([]int, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	states, err := fs.States(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].ID != viewerID {
			users[i].FriendState = states[users[i].ID]
		}
	}
	return nil
}

// runRequestValFns runs any number of functions of type requestValFn on the passed in FriendRequest.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runRequestValFns(ctx context.Context, req *domain.FriendRequest, fns ...requestValFn) error {
	for _, fn := range fns {
		if err := fn(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// A requestValFn is any function that validates a friend request before it is stored.
type requestValFn func(ctx context.Context, req *domain.FriendRequest) error

// notSelfTarget makes sure nobody sends a friend request to themselves.
func (fv *friendValidator) notSelfTarget(ctx context.Context, req *domain.FriendRequest) error {
	if req.SenderID == req.ReceiverID {
		return errs.Reasonf(errs.EINVALID, errs.SelfTarget, "You cannot send a friend request to yourself.")
	}
	return nil
}

// notAlreadyFriend makes sure the receiver is not on the sender's friend list yet.
func (fv *friendValidator) notAlreadyFriend(ctx context.Context, req *domain.FriendRequest) error {
	friends, err := fv.friendGorm.isFriend(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		return err
	}
	if friends {
		return errs.Reasonf(errs.EINVALID, errs.AlreadyFriend, "This user is already your friend.")
	}
	return nil
}

// receiverExists makes sure the receiver of the request has an account.
func (fv *friendValidator) receiverExists(ctx context.Context, req *domain.FriendRequest) error {
	exists, err := fv.accounts.Exists(ctx, req.ReceiverID)
	if err != nil {
		return err
	}
	if !exists {
		return errs.Reasonf(errs.ENOTFOUND, errs.TargetNotFound, "The user does not exist, maybe the account got deleted.")
	}
	return nil
}

// States resolves the viewer's friend state towards each of the given users with
// three independent lookups: friends, received requests and sent requests.
func (fg *friendGorm) States(ctx context.Context, viewerID int, ids []int) (map[int]domain.FriendState, error) {
	states := make(map[int]domain.FriendState, len(ids))
	if len(ids) == 0 {
		return states, nil
	}
	db := fg.db.WithContext(ctx)

	var friendIDs, receivedIDs, sentIDs []int
	err := db.Model(&domain.Friendship{}).
		Where("user_id = ? AND friend_id IN ?", viewerID, ids).
		Pluck("friend_id", &friendIDs).Error
	if err != nil {
		return nil, fmt.Errorf("reading friends: %w", err)
	}
	err = db.Model(&domain.FriendRequest{}).
		Where("receiver_id = ? AND sender_id IN ?", viewerID, ids).
		Pluck("sender_id", &receivedIDs).Error
	if err != nil {
		return nil, fmt.Errorf("reading received requests: %w", err)
	}
	err = db.Model(&domain.FriendRequest{}).
		Where("sender_id = ? AND receiver_id IN ?", viewerID, ids).
		Pluck("receiver_id", &sentIDs).Error
	if err != nil {
		return nil, fmt.Errorf("reading sent requests: %w", err)
	}

	isFriend, received, sent := toSet(friendIDs), toSet(receivedIDs), toSet(sentIDs)
	for _, id := range ids {
		states[id] = domain.ResolveFriendState(isFriend[id], received[id], sent[id])
	}
	return states, nil
}

// FriendIDs returns the friend list of a user.
func (fg *friendGorm) FriendIDs(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := fg.db.WithContext(ctx).
		Model(&domain.Friendship{}).
		Where("user_id = ?", userID).
		Order("friend_id").
		Pluck("friend_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("reading friend list: %w", err)
	}
	return ids, nil
}

// FriendIDsOf returns the friend lists of many users at once, keyed by user.
func (fg *friendGorm) FriendIDsOf(ctx context.Context, userIDs []int) (map[int][]int, error) {
	lists := make(map[int][]int, len(userIDs))
	if len(userIDs) == 0 {
		return lists, nil
	}
	var rows []domain.Friendship
	err := fg.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("user_id, friend_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("reading friend lists: %w", err)
	}
	for _, row := range rows {
		lists[row.UserID] = append(lists[row.UserID], row.FriendID)
	}
	return lists, nil
}

// isFriend reports whether friendID is on the friend list of userID.
func (fg *friendGorm) isFriend(ctx context.Context, userID, friendID int) (bool, error) {
	var count int64
	err := fg.db.WithContext(ctx).
		Model(&domain.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return count > 0, nil
}

// createRequest inserts the request unless the receiver already holds one from the
// same sender. The check happens in the insert itself, so two concurrent sends
// cannot both succeed: the loser affects zero rows.
func (fg *friendGorm) createRequest(ctx context.Context, req *domain.FriendRequest) error {
	req.Viewed = false
	res := fg.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(req)
	if res.Error != nil {
		return fmt.Errorf("creating friend request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Reasonf(errs.EINVALID, errs.DuplicateRequest, "You already sent a friend request to this user.")
	}
	return nil
}

// acceptRequest removes the pending request and writes both directions of the
// friendship in one transaction. Either every write lands or none does.
func (fg *friendGorm) acceptRequest(ctx context.Context, receiverID, senderID int) error {
	return fg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("receiver_id = ? AND sender_id = ?", receiverID, senderID).
			Delete(&domain.FriendRequest{})
		if res.Error != nil {
			return fmt.Errorf("removing friend request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.Reasonf(errs.ENOTFOUND, errs.RequestNotFound, "There is no friend request from this user.")
		}

		// A crossing request in the other direction is answered by the same acceptance.
		err := tx.Where("receiver_id = ? AND sender_id = ?", senderID, receiverID).
			Delete(&domain.FriendRequest{}).Error
		if err != nil {
			return fmt.Errorf("removing crossing friend request: %w", err)
		}

		rows := []domain.Friendship{
			{UserID: receiverID, FriendID: senderID},
			{UserID: senderID, FriendID: receiverID},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return fmt.Errorf("writing friendship: %w", err)
		}
		return nil
	})
}

// deleteRequest removes one pending request. Zero affected rows means there was none.
func (fg *friendGorm) deleteRequest(ctx context.Context, receiverID, senderID int) error {
	res := fg.db.WithContext(ctx).
		Where("receiver_id = ? AND sender_id = ?", receiverID, senderID).
		Delete(&domain.FriendRequest{})
	if res.Error != nil {
		return fmt.Errorf("removing friend request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Reasonf(errs.ENOTFOUND, errs.RequestNotFound, "There is no such friend request.")
	}
	return nil
}

// deleteFriendship removes both directions of a friendship in a single statement.
func (fg *friendGorm) deleteFriendship(ctx context.Context, userID, friendID int) error {
	res := fg.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, friendID, friendID, userID).
		Delete(&domain.Friendship{})
	if res.Error != nil {
		return fmt.Errorf("removing friendship: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Reasonf(errs.ENOTFOUND, errs.NotFriend, "This user is not your friend.")
	}
	return nil
}

func (fg *friendGorm) markViewed(ctx context.Context, receiverID int) error {
	err := fg.db.WithContext(ctx).
		Model(&domain.FriendRequest{}).
		Where("receiver_id = ? AND viewed = ?", receiverID, false).
		Update("viewed", true).Error
	if err != nil {
		return fmt.Errorf("marking friend requests viewed: %w", err)
	}
	return nil
}

func (fg *friendGorm) requests(ctx context.Context, receiverID int) ([]domain.FriendRequest, error) {
	var reqs []domain.FriendRequest
	err := fg.db.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Preload("Sender").
		Order("viewed asc").
		Order("created_at desc").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("reading friend requests: %w", err)
	}
	return reqs, nil
}

func (fg *friendGorm) friends(ctx context.Context, userID int) ([]domain.User, error) {
	var users []domain.User
	err := fg.db.WithContext(ctx).
		Joins("JOIN friendships ON friendships.friend_id = users.id").
		Where("friendships.user_id = ?", userID).
		Order("users.id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("reading friends: %w", err)
	}
	return users, nil
}

// PullFriend removes a user from every friend list, and drops the user's own list.
func (fg *friendGorm) PullFriend(ctx context.Context, userID int) error {
	err := fg.db.WithContext(ctx).
		Where("friend_id = ? OR user_id = ?", userID, userID).
		Delete(&domain.Friendship{}).Error
	if err != nil {
		return fmt.Errorf("pulling friend %d: %w", userID, err)
	}
	return nil
}

// PullRequests removes every pending request the user has sent or received.
func (fg *friendGorm) PullRequests(ctx context.Context, userID int) error {
	err := fg.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Delete(&domain.FriendRequest{}).Error
	if err != nil {
		return fmt.Errorf("pulling friend requests of %d: %w", userID, err)
	}
	return nil
}

func toSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
