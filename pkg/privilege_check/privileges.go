// pkg/privilege_check/privileges.go
package privilege_check

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// PrivilegeCheck describes the identity the process runs as.
type PrivilegeCheck struct {
	UserID    int
	GroupID   int
	Username  string
	Groupname string
	IsRoot    bool
	// SudoUser is the invoking user when run through sudo.
	SudoUser  string
	Timestamp time.Time
}

// Geteuid is replaced in tests.
var Geteuid = os.Geteuid

// CheckPrivileges reports the effective identity of the process.
func CheckPrivileges(rc *honey_io.RuntimeContext) (*PrivilegeCheck, error) {
	logger := otelzap.Ctx(rc.Ctx)

	check := &PrivilegeCheck{
		UserID:    Geteuid(),
		GroupID:   os.Getegid(),
		SudoUser:  SudoUser(),
		Timestamp: time.Now(),
	}
	check.IsRoot = check.UserID == 0

	u, err := user.LookupId(strconv.Itoa(check.UserID))
	if err != nil {
		logger.Warn("Failed to get user info", zap.Error(err))
		check.Username = fmt.Sprintf("uid-%d", check.UserID)
	} else {
		check.Username = u.Username
	}

	if g, err := user.LookupGroupId(strconv.Itoa(check.GroupID)); err == nil {
		check.Groupname = g.Name
	} else {
		check.Groupname = fmt.Sprintf("gid-%d", check.GroupID)
	}

	logger.Debug("Privilege check completed",
		zap.String("username", check.Username),
		zap.Int("uid", check.UserID),
		zap.Bool("is_root", check.IsRoot),
		zap.String("sudo_user", check.SudoUser))

	return check, nil
}

// RequireAdmin returns a permission error unless the process is root.
func RequireAdmin(rc *honey_io.RuntimeContext, operation string) error {
	if Geteuid() == 0 {
		return nil
	}
	otelzap.Ctx(rc.Ctx).Warn("Administrative privileges required",
		zap.String("operation", operation),
		zap.Int("euid", Geteuid()))
	return honey_err.NewPermissionError(operation)
}

// SudoUser returns the user that invoked sudo, if any.
func SudoUser() string {
	return os.Getenv("SUDO_USER")
}
