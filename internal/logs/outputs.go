package logs

import (
	"regexp"
	"strings"

	"github.com/cloudship/deploy-gateway/internal/models"
)

// outputLine matches terraform-style `key = "value"` output assignments
// printed by the workflow's apply step.
var outputLine = regexp.MustCompile(`(?m)^([a-z0-9_]+)\s*=\s*"?([^"\r\n]*)"?\s*$`)

// ExtractOutputs scans a flattened run log for the known provisioning output
// keys and assembles the outputs payload for the resources the deployment
// actually requested.
func ExtractOutputs(text string, requested models.ResourceFlags) models.DeploymentOutputs {
	values := make(map[string]string)
	for _, m := range outputLine.FindAllStringSubmatch(text, -1) {
		values[m[1]] = strings.TrimSpace(m[2])
	}

	region := values["region"]

	var out models.DeploymentOutputs
	if requested.CreateS3 {
		if name := values["s3_bucket_name"]; name != "" {
			out.S3 = &models.S3Outputs{
				BucketName: name,
				BucketURL:  values["s3_bucket_url"],
				Region:     firstNonEmpty(values["s3_region"], region),
			}
		}
	}
	if requested.CreateRDS {
		endpoint := firstNonEmpty(values["rds_endpoint"], values["rds_instance_endpoint"])
		if endpoint != "" {
			out.RDS = &models.RDSOutputs{
				InstanceEndpoint: endpoint,
				DBName:           values["rds_db_name"],
				Username:         values["rds_username"],
				Region:           firstNonEmpty(values["rds_region"], region),
			}
		}
	}
	if requested.CreateEKS {
		if name := values["eks_cluster_name"]; name != "" {
			out.EKS = &models.EKSOutputs{
				ClusterName:     name,
				ClusterEndpoint: values["eks_cluster_endpoint"],
				Region:          firstNonEmpty(values["eks_region"], region),
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
