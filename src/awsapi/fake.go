package awsapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// FakeClient is an in-memory Client for unit tests. Maps are keyed by the
// same identifiers the real control planes use; every call is appended to
// Ops ("<Op>:<name>") so tests can assert ordering invariants.
type FakeClient struct {
	AccountID   string
	IdentityErr error            // returned by CallerAccount when set
	Now         func() time.Time // defaults to time.Now

	Snapshots  map[string]*Snapshot
	Clusters   map[string]*Cluster
	Vaults     map[string][]RecoveryPoint // presence of key = vault exists
	Plans      []BackupPlan
	Selections map[string][]BackupSelection // plan id -> selections
	Stacks     map[string]*Stack

	// Behavior knobs.
	SnapshotAvailableAfter int             // describes returning "creating" first
	FailSnapshots          bool            // created snapshots end up "failed"
	ClusterDeletePolls     map[string]int  // describes reporting "deleting" first
	StackDeletePolls       map[string]int  // describes reporting DELETE_IN_PROGRESS first
	LockedRecoveryPoints   map[string]bool // ARNs that refuse deletion
	FailFirst              map[string]int  // op name -> transient failures before success
	JobCompletesAfter      int             // describes reporting RUNNING first

	Ops []string

	snapshotCountdown map[string]int
	jobs              map[string]*BackupJob
	jobCountdown      map[string]int
	jobTargets        map[string]pendingJob
	jobSeq            int
	rpSeq             int
}

type pendingJob struct{ vault, resourceARN string }

func NewFake() *FakeClient {
	return &FakeClient{
		Snapshots:            map[string]*Snapshot{},
		Clusters:             map[string]*Cluster{},
		Vaults:               map[string][]RecoveryPoint{},
		Selections:           map[string][]BackupSelection{},
		Stacks:               map[string]*Stack{},
		ClusterDeletePolls:   map[string]int{},
		StackDeletePolls:     map[string]int{},
		LockedRecoveryPoints: map[string]bool{},
		FailFirst:            map[string]int{},
		snapshotCountdown:    map[string]int{},
		jobs:                 map[string]*BackupJob{},
		jobCountdown:         map[string]int{},
		jobTargets:           map[string]pendingJob{},
	}
}

func (f *FakeClient) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f *FakeClient) record(op, name string) {
	f.Ops = append(f.Ops, op+":"+name)
}

// failFirst returns a TransientError for the first FailFirst[op] calls.
func (f *FakeClient) failFirst(op string) error {
	if f.FailFirst[op] > 0 {
		f.FailFirst[op]--
		return &TransientError{Op: op, Err: errors.New("simulated throttling")}
	}
	return nil
}

func (f *FakeClient) CreateSnapshot(_ context.Context, snapshotID, clusterID string, _ map[string]string) error {
	f.record("CreateSnapshot", snapshotID)
	if err := f.failFirst("CreateSnapshot"); err != nil {
		return err
	}
	if _, ok := f.Snapshots[snapshotID]; ok {
		return &ConflictError{Resource: "snapshot", Name: snapshotID}
	}
	if _, ok := f.Clusters[clusterID]; !ok {
		return &NotFoundError{Resource: "cluster", Name: clusterID}
	}
	status := "available"
	if f.SnapshotAvailableAfter > 0 {
		status = "creating"
		f.snapshotCountdown[snapshotID] = f.SnapshotAvailableAfter
	}
	if f.FailSnapshots {
		status = "failed"
	}
	f.Snapshots[snapshotID] = &Snapshot{
		ID:           snapshotID,
		ClusterID:    clusterID,
		Status:       status,
		CreatedAt:    f.now(),
		OwnerAccount: f.AccountID,
	}
	return nil
}

func (f *FakeClient) DescribeSnapshot(_ context.Context, snapshotID string) (Snapshot, error) {
	f.record("DescribeSnapshot", snapshotID)
	s, ok := f.Snapshots[snapshotID]
	if !ok {
		return Snapshot{}, &NotFoundError{Resource: "snapshot", Name: snapshotID}
	}
	if s.Status == "creating" {
		if f.snapshotCountdown[snapshotID] > 0 {
			f.snapshotCountdown[snapshotID]--
		} else {
			s.Status = "available"
		}
	}
	return *s, nil
}

func (f *FakeClient) DeleteSnapshot(_ context.Context, snapshotID string) error {
	f.record("DeleteSnapshot", snapshotID)
	if err := f.failFirst("DeleteSnapshot"); err != nil {
		return err
	}
	if _, ok := f.Snapshots[snapshotID]; !ok {
		return &NotFoundError{Resource: "snapshot", Name: snapshotID}
	}
	delete(f.Snapshots, snapshotID)
	return nil
}

func (f *FakeClient) ListSnapshots(_ context.Context) ([]Snapshot, error) {
	f.record("ListSnapshots", "")
	if err := f.failFirst("ListSnapshots"); err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(f.Snapshots))
	for _, s := range f.Snapshots {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeClient) AuthorizeSnapshotAccess(_ context.Context, snapshotID, account string) error {
	f.record("AuthorizeSnapshotAccess", snapshotID)
	if err := f.failFirst("AuthorizeSnapshotAccess"); err != nil {
		return err
	}
	s, ok := f.Snapshots[snapshotID]
	if !ok {
		return &NotFoundError{Resource: "snapshot", Name: snapshotID}
	}
	for _, a := range s.RestoreAccess {
		if a == account {
			return &ConflictError{Resource: "snapshot authorization", Name: snapshotID}
		}
	}
	s.RestoreAccess = append(s.RestoreAccess, account)
	return nil
}

func (f *FakeClient) RevokeSnapshotAccess(_ context.Context, snapshotID, account string) error {
	f.record("RevokeSnapshotAccess", snapshotID)
	s, ok := f.Snapshots[snapshotID]
	if !ok {
		return &NotFoundError{Resource: "snapshot", Name: snapshotID}
	}
	for i, a := range s.RestoreAccess {
		if a == account {
			s.RestoreAccess = append(s.RestoreAccess[:i], s.RestoreAccess[i+1:]...)
			return nil
		}
	}
	return &NotFoundError{Resource: "snapshot authorization", Name: snapshotID}
}

func (f *FakeClient) CopySnapshot(_ context.Context, sourceID, _, sourceCluster, targetID string) error {
	f.record("CopySnapshot", targetID)
	if _, ok := f.Snapshots[targetID]; ok {
		return &ConflictError{Resource: "snapshot", Name: targetID}
	}
	f.Snapshots[targetID] = &Snapshot{
		ID:           targetID,
		ClusterID:    sourceCluster,
		Status:       "available",
		CreatedAt:    f.now(),
		OwnerAccount: f.AccountID,
	}
	return nil
}

func (f *FakeClient) RestoreClusterFromSnapshot(_ context.Context, clusterID, snapshotID, _, _ string) error {
	f.record("RestoreClusterFromSnapshot", clusterID)
	if _, ok := f.Clusters[clusterID]; ok {
		return &ConflictError{Resource: "cluster", Name: clusterID}
	}
	f.Clusters[clusterID] = &Cluster{ID: clusterID, Status: "restoring"}
	return nil
}

func (f *FakeClient) DescribeCluster(_ context.Context, clusterID string) (Cluster, error) {
	f.record("DescribeCluster", clusterID)
	c, ok := f.Clusters[clusterID]
	if !ok {
		return Cluster{}, &NotFoundError{Resource: "cluster", Name: clusterID}
	}
	if c.Status == "deleting" {
		if f.ClusterDeletePolls[clusterID] > 0 {
			f.ClusterDeletePolls[clusterID]--
			return *c, nil
		}
		delete(f.Clusters, clusterID)
		return Cluster{}, &NotFoundError{Resource: "cluster", Name: clusterID}
	}
	return *c, nil
}

func (f *FakeClient) DeleteCluster(_ context.Context, clusterID string) error {
	f.record("DeleteCluster", clusterID)
	if err := f.failFirst("DeleteCluster"); err != nil {
		return err
	}
	c, ok := f.Clusters[clusterID]
	if !ok {
		return &NotFoundError{Resource: "cluster", Name: clusterID}
	}
	if f.ClusterDeletePolls[clusterID] > 0 {
		c.Status = "deleting"
		return nil
	}
	delete(f.Clusters, clusterID)
	return nil
}

func (f *FakeClient) ListClusters(_ context.Context) ([]Cluster, error) {
	f.record("ListClusters", "")
	out := make([]Cluster, 0, len(f.Clusters))
	for _, c := range f.Clusters {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeClient) StartBackupJob(_ context.Context, vault, resourceARN, roleARN string) (string, error) {
	f.record("StartBackupJob", vault)
	if err := f.failFirst("StartBackupJob"); err != nil {
		return "", err
	}
	if _, ok := f.Vaults[vault]; !ok {
		return "", &NotFoundError{Resource: "backup vault", Name: vault}
	}
	f.jobSeq++
	id := fmt.Sprintf("job-%d", f.jobSeq)
	job := &BackupJob{ID: id, State: "RUNNING"}
	f.jobs[id] = job
	f.jobCountdown[id] = f.JobCompletesAfter
	if f.JobCompletesAfter == 0 {
		f.completeJob(vault, resourceARN, job)
	} else {
		// completion is observed through DescribeBackupJob
		f.jobTargets[id] = pendingJob{vault: vault, resourceARN: resourceARN}
	}
	return id, nil
}

func (f *FakeClient) completeJob(vault, resourceARN string, job *BackupJob) {
	f.rpSeq++
	arn := fmt.Sprintf("arn:aws:backup:eu-west-1:%s:recovery-point:rp-%d", f.AccountID, f.rpSeq)
	job.State = "COMPLETED"
	job.RecoveryPointARN = arn
	f.Vaults[vault] = append(f.Vaults[vault], RecoveryPoint{
		ARN:         arn,
		Vault:       vault,
		ResourceARN: resourceARN,
		Status:      "COMPLETED",
		CreatedAt:   f.now(),
	})
}

func (f *FakeClient) DescribeBackupJob(_ context.Context, jobID string) (BackupJob, error) {
	f.record("DescribeBackupJob", jobID)
	job, ok := f.jobs[jobID]
	if !ok {
		return BackupJob{}, &NotFoundError{Resource: "backup job", Name: jobID}
	}
	if job.State == "RUNNING" {
		if f.jobCountdown[jobID] > 0 {
			f.jobCountdown[jobID]--
		} else {
			p := f.jobTargets[jobID]
			f.completeJob(p.vault, p.resourceARN, job)
		}
	}
	return *job, nil
}

func (f *FakeClient) ListRecoveryPoints(_ context.Context, vault string) ([]RecoveryPoint, error) {
	f.record("ListRecoveryPoints", vault)
	if err := f.failFirst("ListRecoveryPoints"); err != nil {
		return nil, err
	}
	points, ok := f.Vaults[vault]
	if !ok {
		return nil, &NotFoundError{Resource: "backup vault", Name: vault}
	}
	return append([]RecoveryPoint(nil), points...), nil
}

func (f *FakeClient) DeleteRecoveryPoint(_ context.Context, vault, arn string) error {
	f.record("DeleteRecoveryPoint", arn)
	if err := f.failFirst("DeleteRecoveryPoint"); err != nil {
		return err
	}
	points, ok := f.Vaults[vault]
	if !ok {
		return &NotFoundError{Resource: "backup vault", Name: vault}
	}
	if f.LockedRecoveryPoints[arn] {
		return errors.New("recovery point is locked by a retention policy")
	}
	for i, rp := range points {
		if rp.ARN == arn {
			f.Vaults[vault] = append(points[:i], points[i+1:]...)
			return nil
		}
	}
	return &NotFoundError{Resource: "recovery point", Name: arn}
}

func (f *FakeClient) ListBackupPlans(_ context.Context) ([]BackupPlan, error) {
	f.record("ListBackupPlans", "")
	return append([]BackupPlan(nil), f.Plans...), nil
}

func (f *FakeClient) ListBackupSelections(_ context.Context, planID string) ([]BackupSelection, error) {
	f.record("ListBackupSelections", planID)
	if !f.planExists(planID) {
		return nil, &NotFoundError{Resource: "backup plan", Name: planID}
	}
	return append([]BackupSelection(nil), f.Selections[planID]...), nil
}

func (f *FakeClient) DeleteBackupSelection(_ context.Context, planID, selectionID string) error {
	f.record("DeleteBackupSelection", selectionID)
	if !f.planExists(planID) {
		return &NotFoundError{Resource: "backup plan", Name: planID}
	}
	for i, s := range f.Selections[planID] {
		if s.ID == selectionID {
			f.Selections[planID] = append(f.Selections[planID][:i], f.Selections[planID][i+1:]...)
			return nil
		}
	}
	return &NotFoundError{Resource: "backup selection", Name: selectionID}
}

func (f *FakeClient) DeleteBackupPlan(_ context.Context, planID string) error {
	f.record("DeleteBackupPlan", planID)
	if !f.planExists(planID) {
		return &NotFoundError{Resource: "backup plan", Name: planID}
	}
	if len(f.Selections[planID]) > 0 {
		return errors.New("backup plan still owns selections")
	}
	for i, p := range f.Plans {
		if p.ID == planID {
			f.Plans = append(f.Plans[:i], f.Plans[i+1:]...)
			break
		}
	}
	delete(f.Selections, planID)
	return nil
}

func (f *FakeClient) DeleteBackupVault(_ context.Context, vault string) error {
	f.record("DeleteBackupVault", vault)
	points, ok := f.Vaults[vault]
	if !ok {
		return &NotFoundError{Resource: "backup vault", Name: vault}
	}
	if len(points) > 0 {
		return errors.New("backup vault is not empty")
	}
	delete(f.Vaults, vault)
	return nil
}

func (f *FakeClient) DescribeStack(_ context.Context, name string) (Stack, error) {
	f.record("DescribeStack", name)
	s, ok := f.Stacks[name]
	if !ok {
		return Stack{}, &NotFoundError{Resource: "stack", Name: name}
	}
	if s.Status == "DELETE_IN_PROGRESS" {
		if f.StackDeletePolls[name] > 0 {
			f.StackDeletePolls[name]--
			return *s, nil
		}
		delete(f.Stacks, name)
		return Stack{}, &NotFoundError{Resource: "stack", Name: name}
	}
	return *s, nil
}

func (f *FakeClient) DeleteStack(_ context.Context, name string) error {
	f.record("DeleteStack", name)
	if err := f.failFirst("DeleteStack"); err != nil {
		return err
	}
	s, ok := f.Stacks[name]
	if !ok {
		return &NotFoundError{Resource: "stack", Name: name}
	}
	if f.StackDeletePolls[name] > 0 {
		s.Status = "DELETE_IN_PROGRESS"
		return nil
	}
	delete(f.Stacks, name)
	return nil
}

func (f *FakeClient) CallerAccount(_ context.Context) (string, error) {
	if f.IdentityErr != nil {
		return "", f.IdentityErr
	}
	return f.AccountID, nil
}

func (f *FakeClient) planExists(planID string) bool {
	for _, p := range f.Plans {
		if p.ID == planID {
			return true
		}
	}
	return false
}

// OpIndex returns the index of the first occurrence of op in Ops, or -1.
func (f *FakeClient) OpIndex(op string) int {
	for i, o := range f.Ops {
		if o == op {
			return i
		}
	}
	return -1
}

// LastOpIndex returns the index of the last occurrence of op in Ops, or -1.
func (f *FakeClient) LastOpIndex(op string) int {
	for i := len(f.Ops) - 1; i >= 0; i-- {
		if f.Ops[i] == op {
			return i
		}
	}
	return -1
}
