/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/petroasset/apiserver/config"
	"github.com/petroasset/apiserver/internal/db"
	"github.com/petroasset/apiserver/internal/logger"
	"github.com/petroasset/apiserver/internal/store"
	"github.com/petroasset/apiserver/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var defaultRoles = []types.Role{
	{
		Name:        types.RoleAdmin,
		Description: "Full access to every resource",
		Permissions: types.NewPermissionSet(types.PermissionAll),
	},
	{
		Name:        types.RoleSupervisor,
		Description: "Runs warehouses, equipment and field teams",
		Permissions: types.NewPermissionSet(
			types.PermViewDashboard,
			types.PermViewAuditLog,
			types.PermViewAsset,
			types.PermEditAsset,
			types.PermViewEquipment,
			types.PermCreateEquipment,
			types.PermUpdateEquipment,
			types.PermViewInstrument,
			types.PermUpdateInstrument,
			types.PermViewWarehouse,
			types.PermUpdateWarehouse,
			types.PermViewInventory,
			types.PermReceiveInventory,
			types.PermDispatchInventory,
			types.PermViewIncident,
			types.PermHandleIncident,
			types.PermViewMaintenance,
			types.PermAssignEngineer,
			types.PermTrackMaintenance,
			types.PermScheduleMaintenance,
			types.PermAssignEngineerInstrument,
			types.PermView3DInstrument,
			types.PermViewOilTankStatus,
			types.PermViewOilOutput,
			types.PermMonitorOilOutput,
			types.PermDispatchOil,
			types.PermViewReport,
			types.PermExportReport,
			types.PermViewOfflineData,
			types.PermSyncOfflineData,
			types.PermViewRole,
			types.PermCreateRole,
			types.PermUpdateRole,
			types.PermCreateNotification,
		),
	},
	{
		Name:        types.RoleEngineer,
		Description: "Field engineer",
		Permissions: types.NewPermissionSet(
			types.PermViewDashboard,
			types.PermViewAsset,
			types.PermViewEquipment,
			types.PermViewInstrument,
			types.PermViewInstrumentDetails,
			types.PermViewEquipmentMaintenance,
			types.PermViewControlPanel,
			types.PermControlEquipment,
			types.PermView3DInstrument,
			types.PermInteract3DInstrument,
			types.PermViewOilTankStatus,
			types.PermViewOilOutput,
			types.PermMonitorOilOutput,
			types.PermViewIncident,
			types.PermAcknowledgeAlert,
			types.PermViewMaintenance,
			types.PermTrackMaintenance,
			types.PermViewOfflineData,
			types.PermSyncOfflineData,
			types.PermViewReport,
			types.PermExportReport,
			types.PermViewWarehouse,
			types.PermViewInventory,
		),
	},
}

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the built-in roles and the initial admin account",
	Long: `Creates the Admin, Supervisor and Engineer roles when they are missing.
When SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD are set, an active admin
account is created for that address unless it already exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, err := logger.New(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		roles := store.NewRoleRepository(conn)
		users := store.NewUserRepository(conn)

		if err := seedRoles(cmd.Context(), roles, log); err != nil {
			return err
		}
		return seedAdmin(cmd.Context(), roles, users, log)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func seedRoles(ctx context.Context, roles *store.RoleRepository, log *zap.Logger) error {
	for _, role := range defaultRoles {
		_, err := roles.GetByName(ctx, role.Name)
		if err == nil {
			log.Info("role exists", zap.String("role", role.Name))
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("look up role %s: %w", role.Name, err)
		}
		if _, err := roles.Create(ctx, role); err != nil {
			return fmt.Errorf("create role %s: %w", role.Name, err)
		}
		log.Info("role created", zap.String("role", role.Name), zap.Int("permissions", role.Permissions.Len()))
	}
	return nil
}

func seedAdmin(ctx context.Context, roles *store.RoleRepository, users *store.UserRepository, log *zap.Logger) error {
	email := strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL"))
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Info("SEED_ADMIN_EMAIL or SEED_ADMIN_PASSWORD not set, skipping admin account")
		return nil
	}

	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		log.Info("admin account exists", zap.String("email", email))
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	admin, err := roles.GetByName(ctx, types.RoleAdmin)
	if err != nil {
		return fmt.Errorf("look up admin role: %w", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	created, err := users.Create(ctx, types.User{
		Email:        email,
		FullName:     "Administrator",
		RoleID:       admin.ID,
		IsActive:     true,
		Status:       types.UserStatusActive,
		PasswordHash: string(hashed),
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Info("admin account created", zap.String("email", created.Email), zap.String("user_id", created.ID))
	return nil
}
